package server_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/internal/pipeline"
	"ariot.dev/platform/internal/server"
	"ariot.dev/platform/internal/store"
)

var _ = Describe("NewServer", func() {
	var (
		testStore    *store.Store
		testPipeline *pipeline.Pipeline
	)

	BeforeEach(func() {
		_, _, s, _ := newTestServer()
		testStore = s
		p, err := pipeline.New(&pipeline.Config{Logger: quietLogger(), Store: s})
		Expect(err).NotTo(HaveOccurred())
		testPipeline = p
	})

	validConfig := func() *server.ServerConfig {
		return &server.ServerConfig{
			Logger:        quietLogger(),
			Store:         testStore,
			Pipeline:      testPipeline,
			HTTPPort:      8080,
			SessionSecret: "secret",
		}
	}

	It("should create a server with a valid config", func() {
		srv, err := server.NewServer(validConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(srv).NotTo(BeNil())
	})

	It("should reject a nil config", func() {
		srv, err := server.NewServer(nil)
		Expect(srv).To(BeNil())
		Expect(err).To(MatchError("server config cannot be nil"))
	})

	It("should reject a missing logger", func() {
		cfg := validConfig()
		cfg.Logger = nil
		_, err := server.NewServer(cfg)
		Expect(err).To(MatchError("logger cannot be nil"))
	})

	It("should reject a missing store", func() {
		cfg := validConfig()
		cfg.Store = nil
		_, err := server.NewServer(cfg)
		Expect(err).To(MatchError("store cannot be nil"))
	})

	It("should reject a missing pipeline", func() {
		cfg := validConfig()
		cfg.Pipeline = nil
		_, err := server.NewServer(cfg)
		Expect(err).To(MatchError("pipeline cannot be nil"))
	})

	It("should reject a non-positive port", func() {
		cfg := validConfig()
		cfg.HTTPPort = 0
		_, err := server.NewServer(cfg)
		Expect(err).To(MatchError("HTTP port must be positive"))
	})

	It("should reject an empty session secret", func() {
		cfg := validConfig()
		cfg.SessionSecret = ""
		_, err := server.NewServer(cfg)
		Expect(err).To(MatchError("session secret cannot be empty"))
	})
})
