package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/internal/store"
)

var _ = Describe("Integration registry", func() {
	var (
		s   *store.Store
		ctx context.Context
	)

	BeforeEach(func() {
		s, _ = newTestStore()
		ctx = context.Background()
	})

	Describe("CreateIntegration", func() {
		It("should create and return the integration", func() {
			integration, err := s.CreateIntegration(ctx, "ChirpStack EU", "chirpstack", "return payload;")
			Expect(err).NotTo(HaveOccurred())
			Expect(integration.ID).NotTo(BeZero())
			Expect(integration.EndpointSlug).To(Equal("chirpstack"))
		})

		It("should reject a duplicate slug and leave a single row", func() {
			_, err := s.CreateIntegration(ctx, "First", "chirpstack", "return payload;")
			Expect(err).NotTo(HaveOccurred())

			_, err = s.CreateIntegration(ctx, "Second", "chirpstack", "return {};")
			Expect(err).To(MatchError(store.ErrDuplicateSlug))

			integrations, err := s.ListIntegrations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(integrations).To(HaveLen(1))
			Expect(integrations[0].Name).To(Equal("First"))
		})

		It("should reject missing fields", func() {
			_, err := s.CreateIntegration(ctx, "", "slug", "return {};")
			Expect(err).To(MatchError(store.ErrInvalidInput))

			_, err = s.CreateIntegration(ctx, "Name", "", "return {};")
			Expect(err).To(MatchError(store.ErrInvalidInput))

			_, err = s.CreateIntegration(ctx, "Name", "slug", "   ")
			Expect(err).To(MatchError(store.ErrInvalidInput))
		})
	})

	Describe("ListIntegrations", func() {
		It("should return integrations newest first", func() {
			_, err := s.CreateIntegration(ctx, "Older", "older", "return payload;")
			Expect(err).NotTo(HaveOccurred())
			time.Sleep(5 * time.Millisecond)
			_, err = s.CreateIntegration(ctx, "Newer", "newer", "return payload;")
			Expect(err).NotTo(HaveOccurred())

			integrations, err := s.ListIntegrations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(integrations).To(HaveLen(2))
			Expect(integrations[0].Name).To(Equal("Newer"))
			Expect(integrations[1].Name).To(Equal("Older"))
		})
	})

	Describe("DeleteIntegration", func() {
		It("should delete an existing integration", func() {
			integration, err := s.CreateIntegration(ctx, "Gone", "gone", "return payload;")
			Expect(err).NotTo(HaveOccurred())

			Expect(s.DeleteIntegration(ctx, integration.ID)).To(Succeed())

			integrations, err := s.ListIntegrations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(integrations).To(BeEmpty())
		})

		It("should return not-found for a missing id, repeatedly, without side effects", func() {
			Expect(s.DeleteIntegration(ctx, 42)).To(MatchError(store.ErrNotFound))
			Expect(s.DeleteIntegration(ctx, 42)).To(MatchError(store.ErrNotFound))

			integrations, err := s.ListIntegrations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(integrations).To(BeEmpty())
		})
	})

	Describe("FindDecoderScript", func() {
		It("should return the stored script", func() {
			_, err := s.CreateIntegration(ctx, "TTN", "ttn", "return {rssi: payload.rssi};")
			Expect(err).NotTo(HaveOccurred())

			script, err := s.FindDecoderScript(ctx, "ttn")
			Expect(err).NotTo(HaveOccurred())
			Expect(script).To(Equal("return {rssi: payload.rssi};"))
		})

		It("should return not-found for an unregistered slug", func() {
			_, err := s.FindDecoderScript(ctx, "nope")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("ResolveDefaultSlug", func() {
		It("should return not-found with an empty registry", func() {
			_, err := s.ResolveDefaultSlug(ctx)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should ignore slugs outside the priority list", func() {
			_, err := s.CreateIntegration(ctx, "Custom", "my-sensors", "return payload;")
			Expect(err).NotTo(HaveOccurred())

			_, err = s.ResolveDefaultSlug(ctx)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should prefer chirpstack over default", func() {
			_, err := s.CreateIntegration(ctx, "Default", "default", "return payload;")
			Expect(err).NotTo(HaveOccurred())
			_, err = s.CreateIntegration(ctx, "ChirpStack", "chirpstack", "return payload;")
			Expect(err).NotTo(HaveOccurred())

			slug, err := s.ResolveDefaultSlug(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(slug).To(Equal("chirpstack"))
		})

		It("should prefer webhook over everything else", func() {
			for _, slug := range []string{"default", "chirpstack", "webhook"} {
				_, err := s.CreateIntegration(ctx, slug, slug, "return payload;")
				Expect(err).NotTo(HaveOccurred())
			}

			slug, err := s.ResolveDefaultSlug(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(slug).To(Equal("webhook"))
		})
	})
})
