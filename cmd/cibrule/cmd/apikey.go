package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/cibrule/internal/core/auth"
	"github.com/solatis/cibrule/internal/core/config"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage rule service API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key for a principal",
	Long: `Issue an API key signed with one of the HMAC secrets from CIBRULE_HMAC_SECRET
or CIBRULE_HMAC_SECRET_N. The key is printed once; only its HMAC is stored.`,
	Args: cobra.NoArgs,
	RunE: runAPIKeyCreate,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd)
	apikeyCreateCmd.Flags().String("principal", "", "name of the key holder (required)")
	apikeyCreateCmd.Flags().String("secret-id", "", "HMAC secret id to sign with (default: the only configured secret)")
	_ = apikeyCreateCmd.MarkFlagRequired("principal")
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	principal, _ := cmd.Flags().GetString("principal")
	secretID, _ := cmd.Flags().GetString("secret-id")

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if secretID == "" {
		if len(secrets) != 1 {
			return fmt.Errorf("--secret-id required when %d HMAC secrets are configured", len(secrets))
		}
		for id := range secrets {
			secretID = id
		}
	}

	ctx := cmd.Context()
	database, queries, err := openDatabase(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer database.Close()

	key, err := auth.NewAuthenticator(secrets, queries).Issue(ctx, secretID, principal)
	if err != nil {
		return fmt.Errorf("failed to issue API key: %w", err)
	}
	logger.Info("API key issued", "principal", principal, "secret_id", secretID)
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
