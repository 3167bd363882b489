package epub

import (
	"encoding/xml"
	"strings"
)

const (
	encryptionFilePath = "META-INF/encryption.xml"
	sinfFilePath       = "META-INF/sinf.xml" // Apple FairPlay
)

// Font obfuscation is not DRM.
var fontObfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true,
	"http://ns.adobe.com/pdf/enc#RC":     true,
}

type xmlEncryption struct {
	XMLName       xml.Name `xml:"encryption"`
	EncryptedData []struct {
		EncryptionMethod struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
	} `xml:"EncryptedData"`
}

// checkDRM reports whether fonts are obfuscated, or ErrDRMProtected when
// content is encrypted.
func checkDRM(r *Reader) (fontObfuscation bool, err error) {
	if r.Has(sinfFilePath) {
		return false, ErrDRMProtected
	}
	if !r.Has(encryptionFilePath) {
		return false, nil
	}
	data, err := r.LoadBytes(encryptionFilePath)
	if err != nil {
		return false, err
	}
	if len(strings.TrimSpace(string(stripBOM(data)))) == 0 {
		return false, nil
	}

	var enc xmlEncryption
	if err := decodeXML(data, &enc); err != nil {
		// unreadable descriptor, assume the worst
		return false, ErrDRMProtected
	}
	for _, ed := range enc.EncryptedData {
		if !fontObfuscationAlgorithms[ed.EncryptionMethod.Algorithm] {
			return false, ErrDRMProtected
		}
		fontObfuscation = true
	}
	return fontObfuscation, nil
}
