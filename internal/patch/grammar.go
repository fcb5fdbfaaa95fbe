package patch

// Literal markers of the patch document grammar: a patch is a sequence of
// "*** Add File:" / "*** Delete File:" / "*** Update File:" sections bounded
// by "*** Begin Patch" / "*** End Patch", each Update section optionally
// followed by "*** Move File To:"; a hunk may end with "*** End of File" to
// anchor it at the end of the file.
const (
	patchPrefix      = "*** Begin Patch"
	patchSuffix      = "*** End Patch"
	addFilePrefix    = "*** Add File: "
	deleteFilePrefix = "*** Delete File: "
	updateFilePrefix = "*** Update File: "
	moveFilePrefix   = "*** Move File To: "
	endOfFilePrefix  = "*** End of File"
	hunkAddPrefix    = "+"
)
