package synth

// renderPickedString mixes the tone's two strings. The strings were retuned
// for this tick by computeTone.
func renderPickedString(data []float64, t *Tone) {
	a := &t.pickedStrings[0]
	b := &t.pickedStrings[1]
	sign := t.unisonSign
	expression := t.expression
	expressionDelta := t.expressionDelta

	for i := range data {
		sample := a.next() + b.next()*sign
		data[i] += t.applyFilters(sample) * expression
		expression += expressionDelta
	}

	t.expression = expression
}
