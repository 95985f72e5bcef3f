package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slate-lang/slate/pkg/slate"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a slate source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			slate.Initialize(slate.WithArgs(args))
			defer slate.Shutdown()

			gil := slate.NewGILState()
			defer gil.Close()
			return slate.Exec(string(src))
		},
	}
}

func evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval EXPR",
		Short: "Evaluate a single expression and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slate.Initialize()
			defer slate.Shutdown()

			gil := slate.NewGILState()
			defer gil.Close()
			res, err := slate.Eval(args[0])
			if err != nil {
				return err
			}
			defer res.Close()
			fmt.Println(res.String())
			return nil
		},
	}
}
