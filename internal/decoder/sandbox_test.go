package decoder_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ariot.dev/platform/internal/decoder"
)

var _ = Describe("Sandbox", func() {
	Describe("Compile", func() {
		It("should compile a well-formed script body", func() {
			script, err := decoder.Compile("return {rssi: payload.rssi};")
			Expect(err).NotTo(HaveOccurred())
			Expect(script).NotTo(BeNil())
		})

		It("should surface syntax errors as compile-stage decoder errors", func() {
			script, err := decoder.Compile("return {rssi: ;")
			Expect(script).To(BeNil())

			decodeErr, ok := decoder.AsError(err)
			Expect(ok).To(BeTrue())
			Expect(decodeErr.Stage).To(Equal(decoder.StageCompile))
		})
	})

	Describe("Invoke", func() {
		It("should pass the payload through to the script", func() {
			script, err := decoder.Compile(`
				return {
					rssi: payload.rxInfo.rssi,
					snr: payload.rxInfo.snr,
					lat: payload.rxInfo.location.latitude,
					lon: payload.rxInfo.location.longitude,
				};
			`)
			Expect(err).NotTo(HaveOccurred())

			payload := map[string]any{
				"rxInfo": map[string]any{
					"rssi": -97.0,
					"snr":  7.5,
					"location": map[string]any{
						"latitude":  41.0082,
						"longitude": 28.9784,
					},
				},
			}

			out, err := script.Invoke(payload, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(out["rssi"]).To(BeNumerically("==", -97))
			Expect(out["snr"]).To(BeNumerically("==", 7.5))
			Expect(out["lat"]).To(BeNumerically("==", 41.0082))
		})

		It("should convert a thrown value into a runtime decoder error", func() {
			script, err := decoder.Compile(`throw new Error("bad uplink");`)
			Expect(err).NotTo(HaveOccurred())

			out, err := script.Invoke(map[string]any{}, 0)
			Expect(out).To(BeNil())

			decodeErr, ok := decoder.AsError(err)
			Expect(ok).To(BeTrue())
			Expect(decodeErr.Stage).To(Equal(decoder.StageRuntime))
			Expect(decodeErr.Message).To(ContainSubstring("bad uplink"))
		})

		It("should reject a non-object return", func() {
			for _, body := range []string{
				"return 42;",
				"return null;",
				"return 'ok';",
				"",
			} {
				script, err := decoder.Compile(body)
				Expect(err).NotTo(HaveOccurred())

				_, err = script.Invoke(map[string]any{}, 0)
				decodeErr, ok := decoder.AsError(err)
				Expect(ok).To(BeTrue(), "body %q should fail", body)
				Expect(decodeErr.Message).To(ContainSubstring("did not return an object"))
			}
		})

		It("should interrupt a script that exceeds its time budget", func() {
			script, err := decoder.Compile("while (true) {}")
			Expect(err).NotTo(HaveOccurred())

			start := time.Now()
			_, err = script.Invoke(map[string]any{}, 100*time.Millisecond)
			elapsed := time.Since(start)

			decodeErr, ok := decoder.AsError(err)
			Expect(ok).To(BeTrue())
			Expect(decodeErr.Message).To(ContainSubstring("time budget"))
			Expect(elapsed).To(BeNumerically("<", 2*time.Second))
		})

		It("should give every invocation a fresh interpreter", func() {
			script, err := decoder.Compile(`
				if (typeof globalThis.counter === "undefined") {
					globalThis.counter = 0;
				}
				globalThis.counter++;
				return {count: globalThis.counter};
			`)
			Expect(err).NotTo(HaveOccurred())

			first, err := script.Invoke(map[string]any{}, 0)
			Expect(err).NotTo(HaveOccurred())
			second, err := script.Invoke(map[string]any{}, 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(first["count"]).To(BeNumerically("==", 1))
			Expect(second["count"]).To(BeNumerically("==", 1))
		})
	})
})
