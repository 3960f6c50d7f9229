// Package signing abstracts the per-vendor request signature schemes behind
// one capability, so adapters and retry logic never care which algorithm a
// given affiliate API demands.
package signing

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Signer produces the vendor signature for one request's query parameters.
type Signer interface {
	Sign(params url.Values) string
}

// sortedPairs concatenates params as key=value in key order, the base string
// both vendor schemes sign over.
func sortedPairs(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params.Get(k))
	}
	return b.String()
}

// MD5Signer implements the shared-secret digest scheme: MD5 over the sorted
// key=value concatenation with the secret appended, uppercase hex.
type MD5Signer struct {
	Secret string
}

func (s MD5Signer) Sign(params url.Values) string {
	sum := md5.Sum([]byte(sortedPairs(params) + s.Secret))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// HMACSigner implements the business-interface scheme: HMAC-SHA256 keyed by
// the secret over the sorted key=value concatenation, uppercase hex.
type HMACSigner struct {
	Secret string
}

func (s HMACSigner) Sign(params url.Values) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(sortedPairs(params)))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
