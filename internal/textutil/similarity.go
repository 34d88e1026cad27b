package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Containment reports how much of the smaller fingerprint's token mass is
// present in the other one. A cue that is a strict prefix of the next cue
// (a common artifact of rolling captions) scores 1.
func Containment(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.total == 0 || b.total == 0 {
		return 0
	}
	small, large := a, b
	if b.total < a.total {
		small, large = b, a
	}
	var shared float64
	for token, count := range small.tokens {
		other, ok := large.tokens[token]
		if !ok {
			continue
		}
		if other < count {
			shared += other
		} else {
			shared += count
		}
	}
	return shared / small.total
}
