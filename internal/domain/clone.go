package domain

// CloneMessages deep-copies a transcript, including appendage payloads, so
// read models and stores never alias live state.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.Appendages == nil {
			continue
		}
		out[i].Appendages = make([]Appendage, len(m.Appendages))
		for j, a := range m.Appendages {
			out[i].Appendages[j] = a
			if a.Log != nil {
				cp := *a.Log
				out[i].Appendages[j].Log = &cp
			}
			if a.Tool != nil {
				cp := *a.Tool
				out[i].Appendages[j].Tool = &cp
			}
			if a.Link != nil {
				cp := *a.Link
				out[i].Appendages[j].Link = &cp
			}
		}
	}
	return out
}
