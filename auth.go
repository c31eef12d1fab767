package mysql

import (
	"crypto/sha1"
	"crypto/sha256"
)

// buildAuthRespWithCachingSha2Password implements caching_sha2_password:
// XOR(SHA256(password), SHA256(SHA256(SHA256(password)), scramble)).
// https://dev.mysql.com/doc/dev/mysql-server/latest/page_caching_sha2_authentication_exchanges.html
func buildAuthRespWithCachingSha2Password(scramble []byte, password string) []byte {
	if password == "" {
		return nil
	}
	hash := sha256.New()
	hash.Write([]byte(password))
	msg1 := hash.Sum(nil)

	hash.Reset()
	hash.Write(msg1)
	msg2 := hash.Sum(nil)

	hash.Reset()
	hash.Write(msg2)
	hash.Write(scramble)
	msg3 := hash.Sum(nil)

	for i := 0; i < len(msg1); i++ {
		msg1[i] ^= msg3[i]
	}

	return msg1
}

// buildAuthRespWithMysqlNativePassword implements the native 4.1
// scramble from spec.md §4.3/§4.5:
// SHA1(password) XOR SHA1(salt || SHA1(SHA1(password))).
// An empty password yields an empty token (spec.md §8 invariant).
// https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_connection_phase_authentication_methods_native_password_authentication.html
func buildAuthRespWithMysqlNativePassword(scramble []byte, password string) []byte {
	if password == "" {
		return nil
	}
	hash := sha1.New()
	hash.Write([]byte(password))
	msg1 := hash.Sum(nil)

	hash.Reset()
	hash.Write(msg1)
	msg2 := hash.Sum(nil)

	hash.Reset()
	hash.Write(scramble)
	hash.Write(msg2)
	msg3 := hash.Sum(nil)

	for idx := 0; idx < len(msg1); idx++ {
		msg1[idx] ^= msg3[idx]
	}

	return msg1
}
