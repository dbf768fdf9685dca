package partitions

import "fmt"

// DedupReport summarizes one deduplication on the calling rank
type DedupReport struct {
	Cleaned    int // Flags this rank cleared because a lower rank also found the source
	Unassigned int // Sources no rank found
}

// Deduplicate resolves sources found by several ranks: a rank keeps a source
// only when no lower-numbered rank found it too, so every source found
// anywhere ends up owned by exactly the lowest finder. With a single rank no
// exchange takes place.
func Deduplicate(comm Communicator, found []bool) ([]bool, DedupReport, error) {
	var report DedupReport
	adjusted := append([]bool(nil), found...)

	if comm == nil || comm.Size() == 1 {
		for _, f := range found {
			if !f {
				report.Unassigned++
			}
		}
		return adjusted, report, nil
	}

	all, err := comm.AllGatherBool(found)
	if err != nil {
		return nil, report, fmt.Errorf("gathering found flags: %w", err)
	}

	rank := comm.Rank()
	for i := range adjusted {
		anyRank := false
		for r := range all {
			if all[r][i] {
				anyRank = true
				break
			}
		}
		if !anyRank {
			report.Unassigned++
			continue
		}
		if !adjusted[i] {
			continue
		}
		for r := 0; r < rank; r++ {
			if all[r][i] {
				adjusted[i] = false
				report.Cleaned++
				break
			}
		}
	}
	return adjusted, report, nil
}
