package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mloperacde/cdeapp-planning-sub010/config"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/database"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/initsvc"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"
)

// Exit code của CLI
const (
	exitAborted         = 1 // Run dừng giữa chừng hoặc lỗi cấu hình
	exitBrokenRemaining = 2 // Run hoàn tất nhưng còn tham chiếu hỏng
)

// exitError mang exit code về main
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode trả về exit code tương ứng với lỗi của Execute
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitAborted
}

// connectFunc tạo services cho run/verify; trả về hàm đóng kết nối
type connectFunc func(jobsFile string) (*initsvc.Services, func(), error)

// connectMongo đọc cấu hình từ env và kết nối MongoDB thật
func connectMongo(jobsFile string) (*initsvc.Services, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, err
	}
	if jobsFile != "" {
		cfg.Reconcile_JobsFile = jobsFile
	}
	client, s, err := initsvc.ConnectMongo(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = database.CloseInstance(client) }

	svc, err := initsvc.NewServices(cfg, s, nil)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}

// newRootCommand dựng cây lệnh: jobs, run, verify
func newRootCommand(connect connectFunc) *cobra.Command {
	var jobsFile string

	rootCmd := &cobra.Command{
		Use:           "reconcile",
		Short:         "Hợp nhất dữ liệu legacy vào master database và sửa tham chiếu",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&jobsFile, "jobs-file", os.Getenv("RECONCILE_JOBS_FILE"), "File YAML định nghĩa job (ghi đè job có sẵn)")

	rootCmd.AddCommand(
		jobsCommand(&jobsFile),
		runCommand(&jobsFile, connect),
		verifyCommand(&jobsFile, connect),
	)
	return rootCmd
}

func jobsCommand(jobsFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Liệt kê các job hợp nhất",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := reconcile.NewCatalog(*jobsFile)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			jobs := make([]*reconcile.Job, 0, catalog.Len())
			for _, name := range catalog.Names() {
				if job, ok := catalog.Get(name); ok {
					jobs = append(jobs, job)
				}
			}
			return printJSON(cmd.OutOrStdout(), jobs)
		},
	}
}

func runCommand(jobsFile *string, connect connectFunc) *cobra.Command {
	var (
		jobName string
		dryRun  bool
		policy  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Chạy quy trình hợp nhất cho một job và in summary JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := reconcile.ParsePolicy(policy)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			svc, closeFn, err := connect(*jobsFile)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			defer closeFn()

			job, err := reconcile.LookupJob(svc.Catalog, jobName)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}

			summary, runErr := svc.Runner.Run(cmd.Context(), job, reconcile.RunOptions{DryRun: dryRun, Policy: p})
			if summary != nil {
				if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			}
			if runErr != nil {
				return &exitError{code: exitAborted, err: runErr}
			}
			if summary.BrokenRemaining > 0 {
				return &exitError{code: exitBrokenRemaining, err: fmt.Errorf("còn %d tham chiếu hỏng", summary.BrokenRemaining)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobName, "job", "", "Tên job (xem lệnh jobs)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Chạy thử, không ghi gì vào store")
	cmd.Flags().StringVar(&policy, "policy", "", "Ghi đè policy cho tham chiếu hỏng: delete, flag, report")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func verifyCommand(jobsFile *string, connect connectFunc) *cobra.Command {
	var jobName string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Đếm tham chiếu hỏng của một job (chỉ đọc)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := connect(*jobsFile)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			defer closeFn()

			job, err := reconcile.LookupJob(svc.Catalog, jobName)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}

			report, err := svc.Runner.Verify(cmd.Context(), job)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK() {
				return &exitError{code: exitBrokenRemaining, err: fmt.Errorf("còn %d tham chiếu hỏng", report.BrokenRemaining)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobName, "job", "", "Tên job (xem lệnh jobs)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
