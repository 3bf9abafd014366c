package server_test

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/internal/server"
	"ariot.dev/platform/internal/store"
)

var _ = Describe("Auth", func() {
	var (
		srv     *server.Server
		handler http.Handler
		s       *store.Store
	)

	BeforeEach(func() {
		srv, handler, s, _ = newTestServer()
	})

	Describe("app-info", func() {
		It("should report unconfigured with the default name on first boot", func() {
			rec := doRequest(handler, http.MethodGet, "/api/app-info", nil, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decodeBody(rec)
			Expect(body["configured"]).To(BeFalse())
			Expect(body["name"]).To(Equal("ARIOT"))
		})

		It("should report the configured name after setup", func() {
			adminCookies(handler)

			rec := doRequest(handler, http.MethodGet, "/api/app-info", nil, nil)
			body := decodeBody(rec)
			Expect(body["configured"]).To(BeTrue())
			Expect(body["name"]).To(Equal("Test Rig"))
		})
	})

	Describe("complete-setup", func() {
		It("should hash the admin password before storing it", func() {
			rec := doRequest(handler, http.MethodPost, "/api/complete-setup", map[string]string{
				"appName":   "Rig",
				"adminUser": "admin",
				"adminPass": "hunter2",
			}, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			settings, err := s.LoadSettings(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(settings[store.SettingAdminPassHash]).NotTo(BeEmpty())
			Expect(settings[store.SettingAdminPassHash]).NotTo(Equal("hunter2"))
			Expect(settings[store.SettingConfigured]).To(Equal("true"))
		})

		It("should reject missing credentials", func() {
			rec := doRequest(handler, http.MethodPost, "/api/complete-setup",
				map[string]string{"appName": "Rig"}, nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should require a session once already configured", func() {
			cookies := adminCookies(handler)

			rec := doRequest(handler, http.MethodPost, "/api/complete-setup", map[string]string{
				"adminUser": "intruder", "adminPass": "pw",
			}, nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))

			rec = doRequest(handler, http.MethodPost, "/api/complete-setup", map[string]string{
				"appName": "Renamed", "adminUser": "admin", "adminPass": "hunter2",
			}, cookies)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("login", func() {
		BeforeEach(func() {
			rec := doRequest(handler, http.MethodPost, "/api/complete-setup", map[string]string{
				"appName": "Rig", "adminUser": "admin", "adminPass": "hunter2",
			}, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should accept valid credentials and open a session", func() {
			rec := doRequest(handler, http.MethodPost, "/api/login", map[string]string{
				"user": "admin", "pass": "hunter2",
			}, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			cookies := rec.Result().Cookies()
			Expect(cookies).NotTo(BeEmpty())

			rec = doRequest(handler, http.MethodGet, "/api/integrations", nil, cookies)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should reject a wrong password", func() {
			rec := doRequest(handler, http.MethodPost, "/api/login", map[string]string{
				"user": "admin", "pass": "wrong",
			}, nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(decodeBody(rec)["error"]).To(Equal("Invalid credentials"))
		})

		It("should reject an unknown user", func() {
			rec := doRequest(handler, http.MethodPost, "/api/login", map[string]string{
				"user": "nobody", "pass": "hunter2",
			}, nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("logout", func() {
		It("should invalidate the session cookie", func() {
			cookies := adminCookies(handler)

			rec := doRequest(handler, http.MethodPost, "/api/logout", nil, cookies)
			Expect(rec.Code).To(Equal(http.StatusOK))

			expired := rec.Result().Cookies()
			rec = doRequest(handler, http.MethodGet, "/api/integrations", nil, expired)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Reload", func() {
		It("should pick up settings written outside the handlers", func() {
			ctx := context.Background()
			Expect(s.PutSetting(ctx, store.SettingAppName, "Side Loaded")).To(Succeed())
			Expect(s.PutSetting(ctx, store.SettingConfigured, "true")).To(Succeed())

			Expect(srv.Reload(ctx)).To(Succeed())

			rec := doRequest(handler, http.MethodGet, "/api/app-info", nil, nil)
			Expect(decodeBody(rec)["name"]).To(Equal("Side Loaded"))
		})
	})
})
