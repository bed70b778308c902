package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Retoucher/internal/domain"
)

// NewTaskCmd создаёт группу команд для управления задачами редактирования.
func NewTaskCmd(storeFn func() (*Store, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage edit tasks",
	}

	cmd.AddCommand(
		newTaskSubmitCmd(storeFn, outputFn),
		newTaskShowCmd(storeFn, outputFn),
		newTaskListCmd(storeFn, outputFn),
	)

	return cmd
}

func newTaskSubmitCmd(storeFn func() (*Store, error), outputFn func() *Output) *cobra.Command {
	var instruction string
	var images []string
	var kind string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new edit task",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if instruction == "" {
				return fmt.Errorf("--instruction is required")
			}

			store, err := storeFn()
			if err != nil {
				return err
			}
			defer store.Close()

			task, err := store.SubmitTask(cmd.Context(), instruction, images, domain.ParseTaskKind(kind))
			if err != nil {
				return err
			}

			out.Success("Task submitted: " + task.ID.String())
			out.Print(
				[]string{"ID", "KIND", "STATUS", "IMAGES"},
				[][]string{{
					task.ID.String(),
					string(task.Kind),
					string(task.Status),
					strconv.Itoa(len(task.Images)),
				}},
				task,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "Natural-language edit instruction (required)")
	cmd.Flags().StringArrayVar(&images, "image", nil, "Path to an input image (repeatable)")
	cmd.Flags().StringVar(&kind, "kind", string(domain.TaskKindSingleEdit), "Task kind: single_edit or composite")

	return cmd
}

func newTaskShowCmd(storeFn func() (*Store, error), outputFn func() *Output) *cobra.Command {
	var saveResult string

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show an edit task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}

			store, err := storeFn()
			if err != nil {
				return err
			}
			defer store.Close()

			task, err := store.GetTask(cmd.Context(), id)
			if err != nil {
				return err
			}

			if saveResult != "" {
				if len(task.ResultImage) == 0 {
					return fmt.Errorf("task has no result image")
				}
				if err := os.WriteFile(saveResult, task.ResultImage, 0o644); err != nil {
					return fmt.Errorf("save result image: %w", err)
				}
				out.Success("Result image saved to " + saveResult)
			}

			out.Print(
				[]string{"ID", "KIND", "STATUS", "VARIANT", "ITERATIONS", "CREATED"},
				[][]string{taskRow(task)},
				task,
			)

			if task.Escalation != "" {
				out.Success("\n" + task.Escalation)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&saveResult, "save", "", "Write the result image to this path")

	return cmd
}

func newTaskListCmd(storeFn func() (*Store, error), outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List edit tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			store, err := storeFn()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			tasks, err := store.ListTasks(ctx, domain.ParseEditStatus(status), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(tasks))
			for i := range tasks {
				rows = append(rows, taskRow(&tasks[i]))
			}

			out.Print(
				[]string{"ID", "KIND", "STATUS", "VARIANT", "ITERATIONS", "CREATED"},
				rows,
				tasks,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(domain.EditStatusPending), "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum tasks to list")

	return cmd
}

// taskRow форматирует задачу в строку таблицы.
func taskRow(task *domain.EditTask) []string {
	return []string{
		task.ID.String(),
		string(task.Kind),
		string(task.Status),
		task.WinningVariant,
		strconv.Itoa(task.Iterations),
		task.CreatedAt.Format(time.RFC3339),
	}
}
