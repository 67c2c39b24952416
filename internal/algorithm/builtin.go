package algorithm

// Names of the built-in providers.
const (
	ProviderGo      = "GO"
	ProviderXCrypto = "XCRYPTO"
)

// Builtin returns the built-in providers in lookup order: the standard
// library one first, then the golang.org/x/crypto one.
func Builtin() []Provider {
	return []Provider{GoProvider(), XCryptoProvider()}
}

// GoProvider offers PBKDF1/PBKDF2 schemes and standard library digests.
func GoProvider() Provider {
	return NewProvider(ProviderGo,
		append([]PBE{pbes1{}}, pbes2Schemes()...),
		stdDigests(),
		map[string]string{
			"SHA":    "SHA-1",
			"SHA1":   "SHA-1",
			"SHA256": "SHA-256",
			"SHA512": "SHA-512",
		},
	)
}

// XCryptoProvider offers memory-hard AEAD schemes and SHA-3/BLAKE2b digests.
func XCryptoProvider() Provider {
	return NewProvider(ProviderXCrypto, aeadSchemes(), xDigests(), nil)
}
