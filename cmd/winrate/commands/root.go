package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "winrate",
	Short: "수주확률 예측 엔진",
	Long: `Win-rate prediction engine CLI

영업기회의 5개 차원 점수와 과거 이력을 조합해 수주확률을 예측하고,
실제 결과로 채점해 모델 정확도를 추적합니다.

Usage:
  go run ./cmd/winrate [command]

Examples:
  go run ./cmd/winrate migrate
  go run ./cmd/winrate api
  go run ./cmd/winrate predict --input lead.json --record
  go run ./cmd/winrate grade 42 won
  go run ./cmd/winrate validate --months 6`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
