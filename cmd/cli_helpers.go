package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/psychon7/Triage-AI/internal/memory"
)

func isJSON() bool {
	return viper.GetBool("json")
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

// openStore opens the task database in the configured data directory.
func openStore() (*memory.SQLiteStore, error) {
	return openStoreAt(appConfig.Data.Dir)
}

func openStoreAt(dir string) (*memory.SQLiteStore, error) {
	store, err := memory.NewSQLiteStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	return store, nil
}
