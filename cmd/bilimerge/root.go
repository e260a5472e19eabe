package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var opts runOptions

	// 不带子命令时等同于 "run"：双击程序即处理程序所在目录。
	rootCmd := &cobra.Command{
		Use:           "bilimerge",
		Short:         "批量合并 B 站缓存分片（video.m4s + audio.m4s）",
		Long:          "不带子命令时处理程序所在目录，等同于 \"bilimerge run\"。",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, nil, opts)
		},
	}
	bindRunFlags(rootCmd, &opts)

	rootCmd.AddCommand(newRunCommand())
	return rootCmd
}

type runOptions struct {
	configPath string
	ffmpeg     string
	dryRun     bool
	reportPath string
	logLevel   string
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [base]",
		Short: "扫描输入目录并逐个分集合并",
		Long: `扫描 <base>/<input_dir> 下的每个作品与分集，选取最高可用清晰度合并为 mp4，
并把合并失败的分片原样复制到 <base>/<fallback_dir>。

base 缺省为程序所在目录。stdout 为终端时输出摘要表格，否则只输出一个 RunReport JSON。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, opts)
		},
	}

	bindRunFlags(cmd, &opts)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "配置文件路径（默认 <base>/bilimerge.toml，可不存在）")
	flags.StringVar(&opts.ffmpeg, "ffmpeg", "", "ffmpeg 可执行文件（覆盖配置文件）")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "只解析与规划，不写入任何文件")
	flags.StringVar(&opts.reportPath, "report", "", "把 RunReport JSON 额外写入该文件")
	flags.StringVar(&opts.logLevel, "log-level", "", "日志级别：debug|info|warn|error（覆盖配置文件）")
}
