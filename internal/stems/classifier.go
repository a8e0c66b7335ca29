package stems

import (
	"strings"

	"github.com/voiceforge/api/internal/client"
)

// The upstream provider labels its output files inconsistently across
// processing modes, so role assignment is heuristic: strict label rules
// first, then looser fallbacks, tried strictly in order. Swapping vocal and
// instrumental would silently corrupt the result, so the order is fixed.

var (
	vocalTerms        = []string{"vocal", "voice", "vox"}
	instrumentalTerms = []string{"instrum", "karaoke", "accomp", "music"}
	leadTerms         = []string{"lead", "main"}
	backTerms         = []string{"back", "bv"}
	leadBackExclude   = []string{"instrum", "music", "other"}
	vocalLikeTerms    = []string{"vocal", "voice", "lead", "back", "speech", "clean", "dry"}
	instrumentLike    = []string{"instrum", "music", "drum", "bass"}
)

func labelHasAny(label string, terms []string) bool {
	label = strings.ToLower(label)
	for _, t := range terms {
		if strings.Contains(label, t) {
			return true
		}
	}
	return false
}

func firstMatch(files []client.OutputFile, include, exclude []string) (client.OutputFile, bool) {
	for _, f := range files {
		if labelHasAny(f.Label, include) && !labelHasAny(f.Label, exclude) {
			return f, true
		}
	}
	return client.OutputFile{}, false
}

func labels(files []client.OutputFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Label
	}
	return out
}

// ClassifyVocalInstrumental assigns the vocal and instrumental roles among
// the output files of an ensemble separation. The instrumental may be absent
// when the provider returned a single file.
func ClassifyVocalInstrumental(files []client.OutputFile) (vocal client.OutputFile, instrumental *client.OutputFile, err error) {
	if len(files) == 0 {
		return client.OutputFile{}, nil, &ClassificationError{Role: "vocal"}
	}

	// Strategy 1: both roles match strictly.
	strictVocal, vocalOK := firstMatch(files, vocalTerms, instrumentalTerms)
	strictInst, instOK := firstMatch(files, instrumentalTerms, vocalTerms)
	if vocalOK && instOK {
		return strictVocal, &strictInst, nil
	}

	// Strategy 2: a single file can only be the vocal.
	if len(files) == 1 {
		return files[0], nil, nil
	}

	// Strategy 3: anchor on whichever role matched and take any other file
	// for the counterpart.
	if instOK {
		return otherThan(files, strictInst), &strictInst, nil
	}
	if vocalOK {
		other := otherThan(files, strictVocal)
		return strictVocal, &other, nil
	}

	// Strategy 4: positional. No label matched anything.
	return files[0], &files[1], nil
}

// ClassifyLeadBack assigns the lead and backing vocal roles among the output
// files of a lead/back split.
func ClassifyLeadBack(files []client.OutputFile) (lead, back client.OutputFile, err error) {
	lead, leadOK := firstMatch(files, leadTerms, append(backTerms, leadBackExclude...))
	if !leadOK {
		// Fallback: first vocal-like file.
		lead, leadOK = firstMatch(files, vocalLikeTerms, instrumentLike)
	}
	if !leadOK {
		return client.OutputFile{}, client.OutputFile{}, &ClassificationError{Role: "lead vocal", Labels: labels(files)}
	}

	back, backOK := firstMatch(files, backTerms, append(leadTerms, leadBackExclude...))
	if !backOK {
		// Fallback: another vocal-like file that is not the lead.
		for _, f := range files {
			if f == lead {
				continue
			}
			if labelHasAny(f.Label, vocalLikeTerms) && !labelHasAny(f.Label, instrumentLike) {
				back, backOK = f, true
				break
			}
		}
	}
	if !backOK {
		return client.OutputFile{}, client.OutputFile{}, &ClassificationError{Role: "backing vocal", Labels: labels(files)}
	}

	return lead, back, nil
}

// PickVocalLike selects the processed vocal among the output files of a
// single-output stage (de-reverb, denoise). Falls back to the first file:
// those stages return the processed track first when labels are unhelpful.
func PickVocalLike(files []client.OutputFile) (client.OutputFile, error) {
	if len(files) == 0 {
		return client.OutputFile{}, &ClassificationError{Role: "processed vocal"}
	}
	if f, ok := firstMatch(files, vocalLikeTerms, instrumentLike); ok {
		return f, nil
	}
	return files[0], nil
}

func otherThan(files []client.OutputFile, taken client.OutputFile) client.OutputFile {
	for _, f := range files {
		if f != taken {
			return f
		}
	}
	return taken
}
