package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/profiler/internal/adapters/sink"
	app "github.com/okian/profiler/internal/app"
	"github.com/okian/profiler/internal/config"
	"github.com/okian/profiler/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// testConfig serves the bundled catalog from a memory sink seeded with the
// catalog profiles.
func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.CatalogPath = "../data/catalog.csv"
	cfg.Sink.Kind = sink.KindMemory
	cfg.Model.MinTrainingRows = 5
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a started service behind the mux", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		svc := app.New(cfg)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx) //nolint:errcheck

		srv := httptest.NewServer(newMux(ctx, cfg, svc))
		defer srv.Close()

		convey.Convey("When a player takes the quiz", func() {
			body := `{"environment":"Oceans & Lakes","personality":"Calm & Loyal","core_strength":"Resilience","battle_style":"Balanced & Versatile"}`
			resp, err := http.Post(srv.URL+"/quiz", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then a catalog partner is returned", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var out struct {
					Outcome string `json:"outcome"`
					Share   string `json:"share"`
				}
				convey.So(json.NewDecoder(resp.Body).Decode(&out), convey.ShouldBeNil)
				_, err := svc.Lookup(out.Outcome)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.Share, convey.ShouldContainSubstring, out.Outcome)
			})
		})

		convey.Convey("When the docs are requested", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("When the landing page is requested", func() {
			resp, err := http.Get(srv.URL + "/")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			convey.So(resp.Header.Get("Content-Type"), convey.ShouldContainSubstring, "text/html")
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a runnable configuration", t, func() {
		cfg := testConfig()
		cfg.Addr = freeAddr(t)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- run(ctx, cfg) }()

		convey.Convey("When the server is up and then cancelled", func() {
			var up bool
			for i := 0; i < 100 && !up; i++ {
				resp, err := http.Get("http://" + cfg.Addr + "/learning")
				if err == nil {
					_ = resp.Body.Close()
					up = resp.StatusCode == http.StatusOK
				}
				if !up {
					time.Sleep(20 * time.Millisecond)
				}
			}
			convey.So(up, convey.ShouldBeTrue)
			cancel()

			convey.Convey("Then run returns cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})
	})

	convey.Convey("Given a missing catalog", t, func() {
		cfg := testConfig()
		cfg.CatalogPath = "does-not-exist.csv"

		convey.Convey("Then run fails before serving", func() {
			convey.So(run(context.Background(), cfg), convey.ShouldNotBeNil)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		calls := 0
		tick(ctx, 5*time.Millisecond, func() { calls++ })
		convey.So(calls, convey.ShouldBeGreaterThan, 0)
	})
}
