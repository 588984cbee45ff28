package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payments-router/app/mapper"
	"github.com/vibast-solutions/ms-go-payments-router/app/service"
	"github.com/vibast-solutions/ms-go-payments-router/app/types"
	"gopkg.in/yaml.v2"
)

var accountsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Replace the account pool with the accounts listed in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		req, err := loadAccountsFile(args[0])
		if err != nil {
			return err
		}

		_, gatewayService, _, cleanup := mustCreateGatewayService()
		defer cleanup()

		accounts, err := gatewayService.SaveAccounts(context.Background(), req)
		if err != nil {
			var validation *service.ValidationError
			if errors.As(err, &validation) {
				for _, message := range validation.Messages {
					logrus.WithField("file", args[0]).Error(message)
				}
			}
			return err
		}
		logrus.WithField("accounts", len(accounts)).Info("Accounts imported")
		return nil
	},
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the configured accounts with masked secrets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, gatewayService, _, cleanup := mustCreateGatewayService()
		defer cleanup()

		accounts, err := gatewayService.ListAccounts(context.Background())
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(&types.ListAccountsResponse{Accounts: mapper.AccountsToView(accounts)})
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var accountsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Normalize legacy account settings",
	RunE: func(_ *cobra.Command, _ []string) error {
		_, gatewayService, _, cleanup := mustCreateGatewayService()
		defer cleanup()

		migrated, err := gatewayService.MigrateAccounts(context.Background())
		if err != nil {
			return err
		}
		logrus.WithField("migrated", migrated).Info("Account migration finished")
		return nil
	},
}

func init() {
	accountsCmd.AddCommand(accountsImportCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsMigrateCmd)
}

func loadAccountsFile(path string) (*types.SaveAccountsRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req types.SaveAccountsRequest
	if err := yaml.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid accounts file %s: %w", path, err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
