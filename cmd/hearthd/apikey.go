// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package hearthd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearthlab/hearthd/internal/pkg/config"
	"github.com/hearthlab/hearthd/internal/pkg/token"
)

// newAPIKeyCommand mints an api key. It prints the token the client presents
// and the api_keys entry the server config needs; the secret itself is shown
// once and never stored.
func newAPIKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Generate an api key for the refresh and reauthorize endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			// Derive with the hub's configured KDF settings so the hash
			// verifies on that hub; fall back to the defaults when no config
			// file is around yet.
			kdf := config.PBKDF2{}
			kdf.InitDefaults()
			cfg, err := config.LoadFile(cfgPath)
			switch {
			case err == nil:
				kdf = cfg.Vault
			case cmd.Flags().Changed("config"):
				return err
			}

			key, entry, err := token.Generate(kdf)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token: %s\n", key.Token())
			fmt.Fprintf(out, "api_keys:\n")
			fmt.Fprintf(out, "  - id: %s\n", entry.ID)
			fmt.Fprintf(out, "    hash: %s\n", entry.Hash)
			fmt.Fprintf(out, "    salt: %s\n", entry.Salt)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", defaultConfigPath(), "Configuration for Hearthd")
	return cmd
}
