// Package output - общий вывод команд: цвета в терминале и JSON по флагу --json.
package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"possync/internal/app/client"
)

var (
	OK   = color.New(color.FgGreen).SprintFunc()
	Warn = color.New(color.FgYellow).SprintFunc()
	Fail = color.New(color.FgRed).SprintFunc()
	Bold = color.New(color.Bold).SprintFunc()
)

func init() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

// App достает клиент из контекста команды.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := client.FromContext(cmd.Context())
	if !ok || app == nil {
		return nil, fmt.Errorf("приложение не инициализировано")
	}
	return app, nil
}

func IsJSON(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

func JSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// State раскрашивает состояние синхронизации.
func State(s client.State) string {
	switch s {
	case client.StateOnlineIdle:
		return OK(string(s))
	case client.StateReplaying:
		return Warn(string(s))
	case client.StateOffline:
		return Fail(string(s))
	default:
		return string(s)
	}
}
