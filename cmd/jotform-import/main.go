// jotform-import runs one member import from the shell and prints the result as JSON.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/jotform-import -form 2419... -incremental
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/jotformsync"
	"github.com/stageworks/roster_backend/utils"
)

func main() {
	formID := flag.String("form", "", "Jotform form id (default: most recently updated active form)")
	incremental := flag.Bool("incremental", false, "only fetch submissions created after the last sync")
	actor := flag.String("as", "cli", "name recorded as the import's trigger")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := utils.SetUsernameInContext(context.Background(), *actor)
	result, err := jotformsync.RunImport(ctx, jotformsync.ImportOptions{
		FormID:      *formID,
		Incremental: *incremental,
		TriggeredBy: *actor,
	})
	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
	if !result.Success {
		os.Exit(2)
	}
}
