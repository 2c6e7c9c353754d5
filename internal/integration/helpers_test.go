//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/collision-weather-etl/internal/config"
)

const (
	primaryID = 51459
	backupID  = 48549
)

const monthHeader = `"Longitude (x)","Latitude (y)","Station Name","Climate ID","Date/Time (LST)","Year","Month","Day","Time (LST)","Temp (°C)","Temp Flag","Precip. Amount (mm)","Precip. Amount Flag","Visibility (km)","Visibility Flag","Weather"` + "\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func monthRow(ts, temp, precip, vis, weather string) string {
	return `"-79.63","43.68","TORONTO","6158731","` + ts + `","2022","01","01","` + ts[11:] + `","` +
		temp + `","","` + precip + `","","` + vis + `","","` + weather + "\"\n"
}

// fakeBulkService serves January 2022 for both stations and the not-found page
// for every other month. The primary lacks temperature at 14:00.
func fakeBulkService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		station, _ := strconv.Atoi(q.Get("stationID"))
		if q.Get("Year") != "2022" || q.Get("Month") != "1" {
			_, _ = io.WriteString(w, "<html><body>Station not found</body></html>")
			return
		}
		var body strings.Builder
		body.WriteString(monthHeader)
		switch station {
		case primaryID:
			body.WriteString(monthRow("2022-01-01 13:00", "-4.0", "0.0", "16.1", "Cloudy"))
			body.WriteString(monthRow("2022-01-01 14:00", "", "0.2", "", ""))
		case backupID:
			body.WriteString(monthRow("2022-01-01 14:00", "-5.0", "0.2", "9.7", "Snow"))
		}
		_, _ = io.WriteString(w, body.String())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeCollisions(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Traffic_Collisions.csv")
	content := "EVENT_UNIQUE_ID,OCC_DATE,OCC_HOUR,DIVISION\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func baseConfig(baseURL, collisionsPath string) *config.Config {
	return &config.Config{
		StartYear:           2022,
		EndYear:             2022,
		PrimaryStationID:    primaryID,
		PrimaryStationName:  "Pearson Airport",
		BackupStationID:     backupID,
		BackupStationName:   "City Centre Airport",
		ClimateBaseURL:      baseURL,
		FetchTimeout:        5 * time.Second,
		FetchRetries:        0,
		FetchConcurrency:    4,
		FetchRateLimit:      1000,
		CollisionsPath:      collisionsPath,
		CollisionIDColumn:   "EVENT_UNIQUE_ID",
		CollisionDateColumn: "OCC_DATE",
		CollisionHourColumn: "OCC_HOUR",
		BatchSize:           2,
	}
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("collision-weather-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}
