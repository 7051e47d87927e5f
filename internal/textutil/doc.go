// Package textutil provides the text normalization shared by the spreadsheet
// readers and the repository: business-key folding, header normalization, and
// object-name sanitizing.
//
// Keys are compared after trimming, Unicode width folding and lowercasing so
// that "ABC-1", " abc-1 " and full-width "ＡＢＣ-1" group together.
package textutil
