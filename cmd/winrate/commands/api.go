package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/winrate/internal/api"
	"github.com/wonny/winrate/internal/api/handlers"
	"github.com/wonny/winrate/internal/importer"
	"github.com/wonny/winrate/internal/realtime"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health
  POST /api/predictions                      - 예측 + 저장 (?qualitative=true)
  POST /api/predictions/preview              - 예측만 (저장 안함)
  POST /api/predictions/batch                - 일괄 예측
  GET  /api/predictions/{id}                 - 예측 조회
  GET  /api/opportunities/{id}/predictions   - 영업기회별 예측 목록
  POST /api/opportunities/{id}/outcome       - 실제 결과 기록
  GET  /api/accuracy                         - 정확도 요약
  GET  /api/accuracy/distribution            - 등급별 분포 (?start&end)
  GET  /api/accuracy/validation              - 기간 검증 (?months)
  POST /api/qualitative                      - 정성 분석
  POST /api/imports/history                  - 이력 업로드 (CSV/XLSX)
  GET  /ws/events                            - 실시간 이벤트

Example:
  go run ./cmd/winrate api
  go run ./cmd/winrate api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// Event hub
	hub := realtime.NewHub(a.log.WithField("component", "realtime.hub"))
	a.service.SetPublisher(hub)

	// Handlers + router
	router := api.NewRouter(api.Handlers{
		WinRate: handlers.NewWinRateHandler(a.service, a.cfg.Scheduler.AccuracyLookbackMonths, a.log),
		Import:  handlers.NewImportHandler(importer.New(a.service, a.log.Zerolog()), a.log),
		Events:  hub.ServeWS,
	}, a.log)

	server := api.New(a.cfg, a.log, router)
	server.OnShutdown(hub.Close)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}
