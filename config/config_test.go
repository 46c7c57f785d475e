package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nucleus-emu/nucleus/config"
	"github.com/nucleus-emu/nucleus/ppu"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	Describe("Default", func() {
		It("should be valid", func() {
			c := config.Default()
			Expect(c.Validate()).To(Succeed())
			Expect(c.Mode()).To(Equal(ppu.ModeInterpreter))
			Expect(c.PageSize).To(Equal(uint32(ppu.DefaultPageSize)))
			Expect(c.DecodeCache.Size).To(Equal(32 * 1024))
			Expect(c.DecodeCache.Associativity).To(Equal(2))
		})

		It("should enable the decode cache only", func() {
			Expect(config.Default().InterpreterOptions()).To(HaveLen(1))
		})
	})

	Describe("Load and Save", func() {
		It("should round trip", func() {
			original := config.Default()
			original.Translator = "recompiler"
			original.MaxInstructions = 1000
			original.Verbosity = 2

			path := filepath.Join(tempDir, "nucleus.json")
			Expect(original.Save(path)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
			Expect(loaded.Mode()).To(Equal(ppu.ModeRecompiler))
			Expect(loaded.InterpreterOptions()).To(HaveLen(2))
		})

		It("should keep defaults for missing keys", func() {
			path := filepath.Join(tempDir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"translator": "recompiler", "decode_cache": {"size": 0}}`), 0644)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Translator).To(Equal("recompiler"))
			Expect(loaded.PageSize).To(Equal(uint32(ppu.DefaultPageSize)))
			Expect(loaded.DecodeCache.Size).To(BeZero())
			Expect(loaded.InterpreterOptions()).To(BeEmpty())
			Expect(loaded.Validate()).To(Succeed())
		})

		It("should return error for non-existent file", func() {
			_, err := config.Load("/nonexistent/path/nucleus.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			Expect(os.WriteFile(path, []byte("not valid json"), 0644)).To(Succeed())

			_, err := config.Load(path)
			Expect(err).To(HaveOccurred())
		})
	})

	DescribeTable("Validate",
		func(mutate func(*config.Config), msg string) {
			c := config.Default()
			mutate(c)
			Expect(c.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("unknown translator", func(c *config.Config) { c.Translator = "jit" }, "translator"),
		Entry("zero page size", func(c *config.Config) { c.PageSize = 0 }, "page_size"),
		Entry("odd page size", func(c *config.Config) { c.PageSize = 0x1800 }, "page_size"),
		Entry("zero function length", func(c *config.Config) { c.MaxFunctionLength = 0 }, "max_function_length"),
		Entry("negative verbosity", func(c *config.Config) { c.Verbosity = -1 }, "verbosity"),
		Entry("zero ways", func(c *config.Config) { c.DecodeCache.Associativity = 0 }, "associativity"),
		Entry("ragged cache size", func(c *config.Config) { c.DecodeCache.Size = 1000 }, "decode_cache.size"),
	)

	It("should clone independently", func() {
		c := config.Default()
		clone := c.Clone()
		clone.Verbosity = 3
		Expect(c.Verbosity).To(BeZero())
	})
})
