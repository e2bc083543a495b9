package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/llmstream/llm"
	"github.com/kbukum/llmstream/relay"
	"github.com/kbukum/llmstream/version"
)

type setupFunc func(cmd *cobra.Command) (*app, error)

func newChatCmd(setup setupFunc) *cobra.Command {
	var (
		system   string
		noStream bool
	)
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a prompt and print the reply as it streams",
		Long:  "Send a prompt and print the reply as it streams. The prompt is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			req := llm.CompletionRequest{
				SystemPrompt: system,
				Messages:     []llm.Message{{Role: "user", Content: prompt}},
			}
			out := cmd.OutOrStdout()
			if noStream {
				resp, err := a.adapter.Execute(cmd.Context(), req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, resp.Content)
				return err
			}
			resp, err := a.adapter.StreamTo(cmd.Context(), req, out)
			if err != nil {
				return err
			}
			if !strings.HasSuffix(resp.Content, "\n") {
				_, _ = fmt.Fprintln(out)
			}
			for _, tc := range resp.ToolCalls {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "tool call %s(%s)\n", tc.Name, tc.Arguments)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&system, "system", "s", "", "system prompt")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the complete reply")
	return cmd
}

func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if f, ok := in.(*os.File); ok {
		if st, err := f.Stat(); err == nil && st.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no prompt given")
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt given")
	}
	return prompt, nil
}

func newServeCmd(setup setupFunc) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Relay streamed completions to HTTP clients as server-sent events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.cfg.Relay
			if port != 0 {
				cfg.Port = port
			}
			srv := relay.NewServer(cfg, a.adapter, a.log)
			if err := srv.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			return srv.Stop(context.Background())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides relay.port)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), info.Version)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	return cmd
}
