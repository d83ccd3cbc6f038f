package mfa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTOTPSecretFindsFirstMatchingPayload(t *testing.T) {
	payloads := []string{
		"not a totp uri",
		"otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example",
	}
	secret, err := ExtractTOTPSecret(payloads)
	require.NoError(t, err)
	require.Equal(t, "JBSWY3DPEHPK3PXP", secret)
}

func TestExtractTOTPSecretNoMatch(t *testing.T) {
	_, err := ExtractTOTPSecret([]string{"https://example.com", "otpauth://hotp/foo?secret=ABC"})
	require.Error(t, err)
}

func TestExtractTOTPSecretEmptyPayloads(t *testing.T) {
	_, err := ExtractTOTPSecret(nil)
	require.Error(t, err)
}

func TestPQuernaTOTPGeneratesSixDigitCode(t *testing.T) {
	gen := NewPQuernaTOTP()
	code, err := gen.Generate("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	require.Len(t, code, 6)
}
