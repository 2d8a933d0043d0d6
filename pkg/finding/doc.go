// Package finding provides the severity scale shared by every auditview
// package: the decoder, the aggregator, the renderers, the writers and the
// gate policy all agree on one ranking and one palette.
//
// npm reports five levels. Their display order is fixed by an explicit rank
// table rather than by comparing the label strings:
//
//	finding.Critical.Rank() // 0
//	finding.Info.Rank()     // 4
//	finding.Severity("").Rank() // RankUnknown, sorts last
package finding
