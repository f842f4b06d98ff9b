package deck

// UnknownCards returns the card lines whose name known rejects, in document
// order.
func UnknownCards(text string, known func(name string) bool) []CardLine {
	var out []CardLine
	for _, cl := range CardLines(text) {
		if !known(cl.Name) {
			out = append(out, cl)
		}
	}
	return out
}
