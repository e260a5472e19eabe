package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		// 有失败条目时报告与摘要已经输出，这里只负责退出码。
		if !errors.Is(err, context.Canceled) && !errors.Is(err, errItemsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
