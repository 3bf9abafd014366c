package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/pkg/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		Context("with nil config", func() {
			It("should create a non-nil logger with defaults", func() {
				log := logger.New(nil)
				Expect(log).NotTo(BeNil())
			})
		})

		Context("with custom output", func() {
			It("should emit JSON records to the writer", func() {
				buf := &bytes.Buffer{}
				log := logger.New(&logger.Config{Level: slog.LevelInfo, Output: buf})

				log.Info("webhook received", "slug", "chirpstack")

				var record map[string]any
				Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
				Expect(record["msg"]).To(Equal("webhook received"))
				Expect(record["slug"]).To(Equal("chirpstack"))
			})

			It("should suppress records below the configured level", func() {
				buf := &bytes.Buffer{}
				log := logger.New(&logger.Config{Level: slog.LevelWarn, Output: buf})

				log.Info("dropped")
				Expect(buf.Len()).To(BeZero())

				log.Warn("kept")
				Expect(buf.String()).To(ContainSubstring("kept"))
			})
		})
	})

	Describe("ParseLevel", func() {
		It("should map known level names", func() {
			Expect(logger.ParseLevel("debug")).To(Equal(slog.LevelDebug))
			Expect(logger.ParseLevel("info")).To(Equal(slog.LevelInfo))
			Expect(logger.ParseLevel("warn")).To(Equal(slog.LevelWarn))
			Expect(logger.ParseLevel("warning")).To(Equal(slog.LevelWarn))
			Expect(logger.ParseLevel("error")).To(Equal(slog.LevelError))
		})

		It("should fall back to info for unknown names", func() {
			Expect(logger.ParseLevel("verbose")).To(Equal(slog.LevelInfo))
			Expect(logger.ParseLevel("")).To(Equal(slog.LevelInfo))
		})
	})

	Describe("Component", func() {
		It("should tag records with the component name", func() {
			buf := &bytes.Buffer{}
			log := logger.New(&logger.Config{Level: slog.LevelInfo, Output: buf})

			logger.Component(log, "pipeline").Info("started")

			var record map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
			Expect(record["component"]).To(Equal("pipeline"))
		})

		It("should tolerate a nil parent", func() {
			Expect(logger.Component(nil, "store")).NotTo(BeNil())
		})
	})
})
