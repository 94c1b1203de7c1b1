package wxpay

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/clbanning/mxj"
)

const rootElement = "xml"

// EncodeXML 编码为 <xml> 报文，无 XML 声明，字段按名称排序输出
func EncodeXML(params Params) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	root := xml.StartElement{Name: xml.Name{Local: rootElement}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParamsInvalid, err)
	}
	for _, key := range params.Keys() {
		if !isElementName(key) {
			return nil, fmt.Errorf("%w: invalid field name %q", ErrParamsInvalid, key)
		}
		if !isXMLText(params[key]) {
			return nil, fmt.Errorf("%w: field %s contains characters not allowed in xml", ErrParamsInvalid, key)
		}
		start := xml.StartElement{Name: xml.Name{Local: key}}
		if err := enc.EncodeToken(start); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParamsInvalid, err)
		}
		if err := enc.EncodeToken(xml.CharData(params[key])); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParamsInvalid, err)
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParamsInvalid, err)
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParamsInvalid, err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParamsInvalid, err)
	}
	return buf.Bytes(), nil
}

// DecodeXML 解析 <xml> 报文为扁平参数集
// 重复的子元素只保留最后一个值，文本去除首尾空白。
func DecodeXML(data []byte) (Params, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrParse)
	}
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := ensureSingleRoot(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	root, ok := m[rootElement]
	if !ok {
		return nil, fmt.Errorf("%w: root element <%s> not found", ErrParse, rootElement)
	}
	params := Params{}
	node, ok := root.(map[string]interface{})
	if !ok {
		return params, nil
	}
	for key, value := range node {
		if strings.HasPrefix(key, "-") || key == "#text" {
			continue
		}
		params[key] = scalarValue(value)
	}
	return params, nil
}

func scalarValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		if len(v) == 0 {
			return ""
		}
		return scalarValue(v[len(v)-1])
	case map[string]interface{}:
		if text, ok := v["#text"]; ok {
			return scalarValue(text)
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// ensureSingleRoot 根元素闭合后只允许空白、注释与处理指令
func ensureSingleRoot(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = mxj.XmlCharsetReader
	depth := 0
	closed := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch tt := tok.(type) {
		case xml.StartElement:
			if closed {
				return fmt.Errorf("element <%s> after root element", tt.Name.Local)
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				closed = true
			}
		case xml.CharData:
			if closed && len(bytes.TrimSpace(tt)) > 0 {
				return fmt.Errorf("text after root element")
			}
		}
	}
}

// isXMLText 校验值只含 XML 1.0 允许的字符
func isXMLText(s string) bool {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		switch {
		case r == 0x9 || r == 0xA || r == 0xD:
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
		i += size
	}
	return true
}

func isElementName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
