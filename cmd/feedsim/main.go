package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var err error
	logger, err = setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	var addr string

	rootCmd := &cobra.Command{
		Use:   "feedsim",
		Short: "Fake data feed simulator",
		Long:  "Serves randomized traffic, weather and bus JSON endpoints for exercising subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(addr)
		},
	}

	rootCmd.Flags().StringVar(&addr, "addr", ":5100", "Listen address")

	return rootCmd.Execute()
}

func serve(addr string) error {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/traffic", func(c *gin.Context) {
		c.JSON(http.StatusOK, trafficReport(rng))
	})
	engine.GET("/weather", func(c *gin.Context) {
		c.JSON(http.StatusOK, weatherReport(rng))
	})
	engine.GET("/bus", func(c *gin.Context) {
		c.JSON(http.StatusOK, busPositions(rng))
	})
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	logger.Info("feed simulator listening", zap.String("addr", addr))
	return engine.Run(addr)
}

var roadNames = []string{"Ring Road", "Outer Bypass", "MG Road", "Station Road", "Airport Expressway"}

func trafficReport(rng *rand.Rand) gin.H {
	segments := make([]gin.H, 0, len(roadNames))
	for _, road := range roadNames {
		segments = append(segments, gin.H{
			"road":       road,
			"speedKmph":  20 + rng.Intn(80),
			"congestion": []string{"low", "moderate", "heavy"}[rng.Intn(3)],
		})
	}
	return gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"segments":  segments,
	}
}

func weatherReport(rng *rand.Rand) gin.H {
	return gin.H{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"temperature": 18.0 + rng.Float64()*20.0,
		"humidity":    30 + rng.Intn(60),
		"windKmph":    rng.Float64() * 25.0,
		"condition":   []string{"clear", "cloudy", "rain", "haze"}[rng.Intn(4)],
	}
}

func busPositions(rng *rand.Rand) gin.H {
	buses := make([]gin.H, 0, 6)
	for i := 0; i < 6; i++ {
		buses = append(buses, gin.H{
			"busId":     fmt.Sprintf("bus-%03d", i+1),
			"route":     fmt.Sprintf("R%d", 1+rng.Intn(9)),
			"longitude": 77.1 + rng.Float64()*0.3,
			"latitude":  28.5 + rng.Float64()*0.3,
			"occupancy": rng.Intn(60),
		})
	}
	return gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"buses":     buses,
	}
}

func setupLogger() (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config.Build()
}
