package ioxsd

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/xsd"
)

func errNotSchema(n xml.Name) error {
	return fmt.Errorf("root element %s is not xs:schema", qname(n))
}

// SniffSchemaLocations reads the root element of a document and returns
// its xsi:schemaLocation and xsi:noNamespaceSchemaLocation references.
func SniffSchemaLocations(r io.Reader) ([]model.URIFilename, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		var res []model.URIFilename
		for _, v := range start.Attr {
			if v.Name.Space != xsd.NamespaceXSI {
				continue
			}
			switch v.Name.Local {
			case "schemaLocation":
				fields := strings.Fields(v.Value)
				for i := 0; i+1 < len(fields); i += 2 {
					res = append(res, model.URIFilename{
						URI:      fields[i],
						Location: fields[i+1],
					})
				}
			case "noNamespaceSchemaLocation":
				if loc := strings.TrimSpace(v.Value); loc != "" {
					res = append(res, model.URIFilename{Location: loc})
				}
			}
		}
		return res, nil
	}
}
