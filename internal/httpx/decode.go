package httpx

import (
	"unicode/utf8"

	"github.com/gogs/chardet"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// DecodeBody converts raw response bytes to a string using the declared
// legacy charset, detecting the real one when the declared decode fails,
// and finally falling back to treating the bytes as UTF-8.
func DecodeBody(raw []byte, charset string) string {
	if enc := encodingFor(charset); enc != nil {
		if s, err := enc.NewDecoder().Bytes(raw); err == nil {
			return string(s)
		}
	}
	// The declared charset lied. Ask the detector before giving up.
	detector := chardet.NewHtmlDetector()
	if res, err := detector.DetectBest(raw); err == nil && res != nil {
		if enc := encodingFor(res.Charset); enc != nil {
			if s, err := enc.NewDecoder().Bytes(raw); err == nil {
				return string(s)
			}
		}
	}
	if !utf8.Valid(raw) {
		log.Warnf("response not decodable as %s or UTF-8, keeping raw bytes", charset)
	}
	return string(raw)
}

func encodingFor(charset string) encoding.Encoding {
	switch charset {
	case "gbk", "GBK", "gb2312", "GB2312", "gb18030", "GB18030", "GB-18030":
		return simplifiedchinese.GB18030
	case "big5", "Big5", "BIG5":
		return traditionalchinese.Big5
	default:
		return nil
	}
}

// EncodeGB18030 converts a UTF-8 string to GB18030 bytes for legacy form
// posts. Characters the target charset cannot express are dropped by the
// encoder's replacement policy.
func EncodeGB18030(s string) []byte {
	out, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}
