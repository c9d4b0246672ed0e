package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/winrate/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 마이그레이션",
	Long: `내장된 SQL 마이그레이션을 순서대로 적용합니다 (이미 적용된 파일은 건너뜀).

Subcommands:
  check   - 연결/풀 상태 확인

Example:
  go run ./cmd/winrate migrate
  go run ./cmd/winrate migrate check`,
	RunE: runMigrate,
}

var migrateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "PostgreSQL 연결 테스트",
	RunE:  runDBCheck,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateCheckCmd)
}

func connect() (*database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := database.Migrate(ctx, db.Pool)
	if err != nil {
		return err
	}

	if len(applied) == 0 {
		PrintSuccess("Schema is up to date")
		return nil
	}
	PrintList(applied)
	PrintSuccess(fmt.Sprintf("%d migrations applied", len(applied)))
	return nil
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	PrintHeader("Database health")
	PrintKeyValue("Healthy", fmt.Sprintf("%v", status.Healthy), 14)
	PrintKeyValue("Response time", status.ResponseTime.String(), 14)
	PrintKeyValue("Max conns", fmt.Sprintf("%d", status.Stats.MaxConns), 14)
	PrintKeyValue("Total conns", fmt.Sprintf("%d", status.Stats.TotalConns), 14)
	PrintKeyValue("Idle conns", fmt.Sprintf("%d", status.Stats.IdleConns), 14)
	PrintSuccess("Database reachable")
	return nil
}
