package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch URL",
	Short: "Perform one HTTP request through the bridge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")
		rawHeaders, _ := cmd.Flags().GetStringArray("header")
		data, _ := cmd.Flags().GetString("data")

		req := domain.NetworkRequest{Method: strings.ToUpper(method), URL: args[0]}
		for _, h := range rawHeaders {
			name, value, ok := strings.Cut(h, ":")
			if !ok {
				return fmt.Errorf("invalid header %q: expected 'Name: value'", h)
			}
			req.Headers = req.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
		}
		if data != "" {
			req.Body = []byte(data)
		}
		return dispatch(cmd, req)
	},
}

var readCmd = &cobra.Command{
	Use:   "read PATH",
	Short: "Read a file through the bridge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, domain.FileReadRequest{Path: args[0]})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write PATH [CONTENTS]",
	Short: "Write a file through the bridge (contents from stdin when omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("strategy")
		strategy, err := domain.ParseExistsStrategy(name)
		if err != nil {
			return err
		}

		var contents []byte
		if len(args) == 2 {
			contents = []byte(args[1])
		} else if contents, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		return dispatch(cmd, domain.FileWriteRequest{Path: args[0], Contents: contents, Strategy: strategy})
	},
}

// dispatch runs one request and prints its outcome. A failure outcome is printed and
// turned into a non-zero exit.
func dispatch(cmd *cobra.Command, req domain.Request) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	outcome, err := s.host.Bridge.Dispatch(s.Context(), req)
	if err != nil {
		return err
	}
	if err := s.printer.Outcome(outcome); err != nil {
		return err
	}
	if outcome.Failed() {
		return fmt.Errorf("%s failed", req.Kind())
	}
	return nil
}

func init() {
	rootCmd.AddCommand(fetchCmd, readCmd, writeCmd)

	fetchCmd.Flags().StringP("method", "X", "GET", "HTTP method")
	fetchCmd.Flags().StringArrayP("header", "H", nil, "Request header 'Name: value' (repeatable)")
	fetchCmd.Flags().StringP("data", "d", "", "Request body")

	writeCmd.Flags().StringP("strategy", "s", "abort", "What to do when the file exists: abort, overwrite, prepend, append")
}
