package store_test

import (
	"context"
	"encoding/json"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/internal/store"
)

var _ = Describe("Audit log sink", func() {
	var (
		s   *store.Store
		ctx context.Context
	)

	BeforeEach(func() {
		s, _ = newTestStore()
		ctx = context.Background()
	})

	Describe("AppendSystemLog", func() {
		It("should persist the entry with JSON details", func() {
			err := s.AppendSystemLog(ctx, store.SourceWebhook, store.LevelInfo,
				"Data Processed Successfully",
				map[string]any{"slug": "chirpstack", "payload": map[string]any{"rssi": -97}})
			Expect(err).NotTo(HaveOccurred())

			entries, err := s.RecentSystemLogs(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Source).To(Equal("webhook"))
			Expect(entries[0].Level).To(Equal("info"))
			Expect(entries[0].Message).To(Equal("Data Processed Successfully"))

			var details map[string]any
			Expect(json.Unmarshal(entries[0].Details, &details)).To(Succeed())
			Expect(details["slug"]).To(Equal("chirpstack"))
		})

		It("should accept nil details", func() {
			err := s.AppendSystemLog(ctx, store.SourceSystem, store.LevelWarn, "Config Reloaded", nil)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("RecentSystemLogs", func() {
		It("should return entries newest first, capped at the limit", func() {
			for i := range 60 {
				err := s.AppendSystemLog(ctx, store.SourceWebhook, store.LevelInfo,
					fmt.Sprintf("entry %d", i), nil)
				Expect(err).NotTo(HaveOccurred())
			}

			entries, err := s.RecentSystemLogs(ctx, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(50))
			Expect(entries[0].Message).To(Equal("entry 59"))
			Expect(entries[49].Message).To(Equal("entry 10"))
		})

		It("should default the cap when limit is not positive", func() {
			for i := range 55 {
				err := s.AppendSystemLog(ctx, store.SourceWebhook, store.LevelInfo,
					fmt.Sprintf("entry %d", i), nil)
				Expect(err).NotTo(HaveOccurred())
			}

			entries, err := s.RecentSystemLogs(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(50))
		})
	})
})
