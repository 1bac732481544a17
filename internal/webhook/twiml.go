package webhook

import "encoding/xml"

type ackEnvelope struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// RenderAck wraps reply text in the transport's markup acknowledgement.
// An empty reply renders the empty <Response/> used for suppressed and
// duplicate deliveries.
func RenderAck(reply string) string {
	out, err := xml.Marshal(ackEnvelope{Message: reply})
	if err != nil {
		return "<Response/>"
	}
	return xml.Header + string(out)
}
