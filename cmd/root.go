package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gcscan",
	Short: "GC handle-scan workload runner",
	Long: `gcscan exercises the root- and handle-scanning layer of a generational
collector against synthetic heaps: weak-reference clearing, dependent-handle
fixed-point promotion, relocation fixups, and generation aging.`,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell completions",
	Run: func(cmd *cobra.Command, args []string) {
		if !isShellSupported() {
			fmt.Printf("❌ Shell completion not supported for: %s\n", detectShell())
			fmt.Println("Supported shells: bash, zsh, fish")
			return
		}

		fmt.Println("📦 Installing completions...")
		if err := installCompletions(cmd.Root()); err != nil {
			fmt.Printf("❌ Failed: %v\n", err)
		} else {
			fmt.Println("✅ Done! Restart your shell to enable tab completion.")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func isShellSupported() bool {
	shell := detectShell()
	return shell == "bash" || shell == "zsh" || shell == "fish"
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}

	shell := filepath.Base(os.Getenv("SHELL"))
	if shell == "" {
		return "bash"
	}
	return shell
}

type completionConfig struct {
	dir     string
	file    string
	genFunc func(io.Writer) error
}

func installCompletions(rootCmd *cobra.Command) error {
	home, _ := os.UserHomeDir()

	configs := map[string]completionConfig{
		"bash": {
			dir:     filepath.Join(home, ".local/share/bash-completion/completions"),
			file:    "gcscan",
			genFunc: rootCmd.GenBashCompletion,
		},
		"zsh": {
			dir:     filepath.Join(home, ".zsh/completions"),
			file:    "_gcscan",
			genFunc: rootCmd.GenZshCompletion,
		},
		"fish": {
			dir:     filepath.Join(home, ".config/fish/completions"),
			file:    "gcscan.fish",
			genFunc: func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
		},
	}

	config, ok := configs[detectShell()]
	if !ok {
		return fmt.Errorf("unsupported shell: %s", detectShell())
	}

	os.MkdirAll(config.dir, 0755)

	file, err := os.Create(filepath.Join(config.dir, config.file))
	if err != nil {
		return err
	}
	defer file.Close()

	return config.genFunc(file)
}

func init() {
	rootCmd.AddCommand(installCmd)
}
