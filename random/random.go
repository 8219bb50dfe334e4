package random

import (
	crand "crypto/rand"
	"math/big"
	"strings"
)

const (
	charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Upper case only, without look-alikes, so references survive being
	// read over the phone.
	refCharset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// String returns a cryptographically random string drawn from [0-9A-Za-z].
func String(length int) (string, error) {
	return fromCharset(charset, length)
}

// Reference returns a human friendly identifier such as "ORD-7K2M9QXA".
func Reference(prefix string, length int) (string, error) {
	s, err := fromCharset(refCharset, length)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return s, nil
	}
	return strings.ToUpper(prefix) + "-" + s, nil
}

func fromCharset(set string, length int) (string, error) {
	b := make([]byte, length)
	l := big.NewInt(int64(len(set)))
	for i := range b {
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = set[num.Int64()]
	}
	return string(b), nil
}
