package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/cargo-for-each/internal/env"
	"github.com/hochfrequenz/cargo-for-each/internal/executor"
	"github.com/hochfrequenz/cargo-for-each/internal/journal"
	"github.com/hochfrequenz/cargo-for-each/internal/metadata"
	"github.com/hochfrequenz/cargo-for-each/internal/notify"
	"github.com/hochfrequenz/cargo-for-each/internal/resolver"
	"github.com/hochfrequenz/cargo-for-each/internal/scheduler"
	"github.com/hochfrequenz/cargo-for-each/internal/state"
	"github.com/hochfrequenz/cargo-for-each/internal/tasks"
	"github.com/hochfrequenz/cargo-for-each/internal/watch"
	"github.com/hochfrequenz/cargo-for-each/tui"
)

var (
	taskCreateName   string
	taskCreatePlan   string
	taskCreateSet    string
	taskRemoveName   string
	taskStatusName   string
	taskHistoryName  string
	taskHistoryLimit int
	taskWatchName    string
	taskRunName      string
	taskRunJobs      int
	taskRunKeepGoing bool
	taskRunNotify    bool
)

func init() {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage and execute tasks",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task by freezing a plan and a resolved target set",
		RunE:  runTaskCreate,
	}
	createCmd.Flags().StringVar(&taskCreateName, "name", "", "name of the task")
	createCmd.Flags().StringVar(&taskCreatePlan, "plan", "", "name of the plan to freeze")
	createCmd.Flags().StringVar(&taskCreateSet, "target-set", "", "name of the target set to resolve")
	taskCmd.AddCommand(createCmd)

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a task and its execution state",
		RunE:  runTaskRemove,
	}
	removeCmd.Flags().StringVar(&taskRemoveName, "name", "", "name of the task")
	taskCmd.AddCommand(removeCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List task names",
		RunE:  runTaskList,
	}
	taskCmd.AddCommand(listCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-target progress for a task",
		RunE:  runTaskStatus,
	}
	statusCmd.Flags().StringVar(&taskStatusName, "name", "", "name of the task")
	taskCmd.AddCommand(statusCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded step attempts for a task, newest first",
		RunE:  runTaskHistory,
	}
	historyCmd.Flags().StringVar(&taskHistoryName, "name", "", "name of the task")
	historyCmd.Flags().IntVar(&taskHistoryLimit, "limit", 20, "number of attempts to show, 0 for all")
	taskCmd.AddCommand(historyCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch live task progress in the terminal",
		RunE:  runTaskWatch,
	}
	watchCmd.Flags().StringVar(&taskWatchName, "name", "", "name of the task")
	taskCmd.AddCommand(watchCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute steps of a task",
	}
	runCmd.PersistentFlags().StringVar(&taskRunName, "name", "", "name of the task")

	runCmd.AddCommand(&cobra.Command{
		Use:   "single-step",
		Short: "Run the next incomplete step of the first ready target",
		RunE:  runTaskRunSingleStep,
	})
	runCmd.AddCommand(&cobra.Command{
		Use:   "single-target",
		Short: "Run all remaining steps of the first ready target",
		RunE:  runTaskRunSingleTarget,
	})
	allTargetsCmd := &cobra.Command{
		Use:   "all-targets",
		Short: "Run all remaining steps of every target in dependency order",
		RunE:  runTaskRunAllTargets,
	}
	allTargetsCmd.Flags().IntVarP(&taskRunJobs, "jobs", "j", 1, "number of targets to run concurrently")
	allTargetsCmd.Flags().BoolVarP(&taskRunKeepGoing, "keep-going", "k", false, "keep running unaffected targets after a failure")
	allTargetsCmd.Flags().BoolVar(&taskRunNotify, "notify", false, "send a notification when the run finishes")
	runCmd.AddCommand(allTargetsCmd)

	taskCmd.AddCommand(runCmd)
	rootCmd.AddCommand(taskCmd)
}

func taskManager(e env.Environment) *tasks.Manager {
	res := resolver.New(metadata.NewCargoOracle(slog.Default()), slog.Default())
	return tasks.NewManager(e, res, slog.Default())
}

func runTaskCreate(cmd *cobra.Command, _ []string) error {
	if taskCreateName == "" || taskCreatePlan == "" || taskCreateSet == "" {
		return fmt.Errorf("--name, --plan and --target-set are required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	return taskManager(e).Create(cmd.Context(), taskCreateName, taskCreatePlan, taskCreateSet)
}

func runTaskRemove(_ *cobra.Command, _ []string) error {
	if taskRemoveName == "" {
		return fmt.Errorf("--name is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	return taskManager(e).Remove(taskRemoveName)
}

func runTaskList(_ *cobra.Command, _ []string) error {
	e, err := env.Detect()
	if err != nil {
		return err
	}
	names, err := taskManager(e).List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runTaskStatus(_ *cobra.Command, _ []string) error {
	if taskStatusName == "" {
		return fmt.Errorf("--name is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	task, err := taskManager(e).Load(taskStatusName)
	if err != nil {
		return err
	}
	st := state.NewStore(e)
	matrix := st.CompletionMatrix(task.Name, task.Plan, task.Resolved)

	// Last attempt per target, best effort: status still renders when the
	// journal cannot be opened.
	lastAttempt := make(map[int]time.Time)
	jr, err := journal.Open(e.JournalPath())
	if err != nil {
		slog.Warn("could not open journal", "error", err)
	} else {
		defer jr.Close()
		attempts, err := jr.ListAttempts(task.Name, 0)
		if err != nil {
			return err
		}
		for _, a := range attempts {
			if a.FinishedAt.After(lastAttempt[a.TargetIdx]) {
				lastAttempt[a.TargetIdx] = a.FinishedAt
			}
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSTEPS\tSTATE\tLAST ATTEMPT")
	for i, target := range task.Resolved.Targets {
		done := 0
		for _, ok := range matrix[i] {
			if ok {
				done++
			}
		}
		label := "blocked"
		switch {
		case done == len(task.Plan.Steps):
			label = "done"
		case st.DependenciesSatisfied(task.Name, task.Plan, task.Resolved, i):
			label = "ready"
		}
		last := "never"
		if t, ok := lastAttempt[i]; ok {
			last = humanize.Time(t)
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\n", target.ManifestDir, done, len(task.Plan.Steps), label, last)
	}
	return w.Flush()
}

func runTaskHistory(_ *cobra.Command, _ []string) error {
	if taskHistoryName == "" {
		return fmt.Errorf("--name is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	task, err := taskManager(e).Load(taskHistoryName)
	if err != nil {
		return err
	}
	jr, err := journal.Open(e.JournalPath())
	if err != nil {
		return err
	}
	defer jr.Close()
	attempts, err := jr.ListAttempts(task.Name, taskHistoryLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tTARGET\tSTEP\tKIND\tDETAIL\tOUTCOME")
	for _, a := range attempts {
		target := fmt.Sprintf("#%d", a.TargetIdx)
		if a.TargetIdx >= 0 && a.TargetIdx < len(task.Resolved.Targets) {
			target = task.Resolved.Targets[a.TargetIdx].ManifestDir
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			humanize.Time(a.FinishedAt), target, a.StepIdx, a.StepKind, a.Detail, a.Outcome)
	}
	return w.Flush()
}

func runTaskWatch(cmd *cobra.Command, _ []string) error {
	if taskWatchName == "" {
		return fmt.Errorf("--name is required")
	}
	e, err := env.Detect()
	if err != nil {
		return err
	}
	task, err := taskManager(e).Load(taskWatchName)
	if err != nil {
		return err
	}
	st := state.NewStore(e)

	p := tea.NewProgram(tui.NewModel(tui.ModelConfig{Task: *task, State: st}), tea.WithAltScreen())
	sw, err := watch.NewStateWatcher(e.TaskStateDir(task.Name), func() {
		p.Send(tui.StateChangedMsg{})
	}, slog.Default())
	if err != nil {
		return err
	}
	sw.Start(cmd.Context())
	defer sw.Stop()

	_, err = p.Run()
	return err
}

// buildRun wires the execution stack for one task run. The returned
// closer releases the journal.
func buildRun(name string) (*scheduler.Scheduler, *tasks.Task, func(), error) {
	if name == "" {
		return nil, nil, nil, fmt.Errorf("--name is required")
	}
	e, err := env.Detect()
	if err != nil {
		return nil, nil, nil, err
	}
	task, err := taskManager(e).Load(name)
	if err != nil {
		return nil, nil, nil, err
	}
	st := state.NewStore(e)
	jr, err := journal.Open(e.JournalPath())
	if err != nil {
		// Runs proceed without history rather than failing outright.
		slog.Warn("could not open journal, attempts will not be recorded", "error", err)
		jr = nil
	}
	exec := executor.New(executor.Config{
		State:   st,
		Journal: jr,
		Env:     e,
		Logger:  slog.Default(),
	})
	sched := scheduler.New(scheduler.Config{
		State:  st,
		Runner: exec,
		Logger: slog.Default(),
	})
	return sched, task, func() { _ = jr.Close() }, nil
}

func runTaskRunSingleStep(cmd *cobra.Command, _ []string) error {
	sched, task, closer, err := buildRun(taskRunName)
	if err != nil {
		return err
	}
	defer closer()
	return sched.RunSingleStep(cmd.Context(), *task)
}

func runTaskRunSingleTarget(cmd *cobra.Command, _ []string) error {
	sched, task, closer, err := buildRun(taskRunName)
	if err != nil {
		return err
	}
	defer closer()
	return sched.RunSingleTarget(cmd.Context(), *task)
}

func runTaskRunAllTargets(cmd *cobra.Command, _ []string) error {
	sched, task, closer, err := buildRun(taskRunName)
	if err != nil {
		return err
	}
	defer closer()
	runErr := sched.RunAllTargets(cmd.Context(), *task, scheduler.AllTargetsOptions{
		Jobs:      taskRunJobs,
		KeepGoing: taskRunKeepGoing,
	})
	if taskRunNotify {
		sendRunOutcome(task.Name, runErr)
	}
	return runErr
}

func sendRunOutcome(task string, runErr error) {
	n := notify.Notification{Task: task}
	switch {
	case runErr == nil:
		n.Type = notify.NotifySuccess
		n.Title = "Task completed"
		n.Message = fmt.Sprintf("All steps for all targets of %s completed.", task)
	case errors.Is(runErr, scheduler.ErrSomeStepsFailed):
		n.Type = notify.NotifyWarning
		n.Title = "Task finished with failures"
		n.Message = fmt.Sprintf("Some targets of %s failed, the rest completed.", task)
	default:
		n.Type = notify.NotifyError
		n.Title = "Task run stopped"
		n.Message = fmt.Sprintf("Run of %s stopped: %v", task, runErr)
	}
	if err := notify.FromEnvironment().Send(n); err != nil {
		slog.Warn("could not send notification", "error", err)
	}
}
