package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/claimpay/internal/traces"
	"github.com/jerry-enebeli/claimpay/model"
)

// readAuthorizationRequest decodes a request from path, or from stdin when path is "-".
func readAuthorizationRequest(path string) (*model.AuthorizationRequest, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req model.AuthorizationRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid authorization request: %w", err)
	}
	return &req, nil
}

// authorizeCommands runs one authorization and prints the outcome as JSON.
func authorizeCommands(app *claimPayInstance) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "authorize an indemnity payment",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			shutdown, err := traces.SetupOTelSDK(ctx, app.cnf.Tracing)
			if err != nil {
				log.Fatal(err)
			}
			defer shutdownTracing(shutdown)

			req, err := readAuthorizationRequest(file)
			if err != nil {
				log.Fatal(err)
			}

			outcome, err := app.claimpay.AuthorizePayment(ctx, req)
			if err != nil {
				log.Fatalf("authorization failed: %v", err)
			}

			data, err := json.MarshalIndent(outcome, "", "    ")
			if err != nil {
				log.Fatalf("Error printing outcome: %v\n", err)
			}
			fmt.Println(string(data))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON authorization request, - reads stdin")
	return cmd
}
