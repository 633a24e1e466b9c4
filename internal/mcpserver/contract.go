package mcpserver

// DateRecordContract describes the embedded date record and the status
// rules that LLM consumers should follow before writing dates.
const DateRecordContract = `# Tankobon Date Record Contract

Every CBZ/CBR archive may carry a ` + "`" + `ComicInfo.xml` + "`" + ` entry. Tankobon only
reads and writes its ` + "`" + `Year` + "`" + `, ` + "`" + `Month` + "`" + ` and ` + "`" + `Day` + "`" + ` elements.

## Record

` + "```" + `xml
<?xml version="1.0" encoding="utf-8"?>
<ComicInfo>
  <Year>2020</Year>   <!-- four digits -->
  <Month>05</Month>   <!-- 01..12, defaults to 01 -->
  <Day>14</Day>       <!-- 01..31, defaults to 01 -->
</ComicInfo>
` + "```" + `

## Rules

1. **Writes replace the record.** A write stores a fresh record holding only
   these three fields. Missing month or day become ` + "`" + `01` + "`" + `; single digits
   are zero-padded.
2. **Other entries are untouched.** Page images and any other entries are
   copied byte for byte. The archive is replaced atomically.
3. **Paths** are relative to the library root and use forward slashes.
   Supported extensions: ` + "`" + `.cbz` + "`" + `, ` + "`" + `.zip` + "`" + `, ` + "`" + `.cbr` + "`" + `, ` + "`" + `.rar` + "`" + `.

## Status

| Status    | Meaning                                                        |
|-----------|----------------------------------------------------------------|
| ` + "`" + `ok` + "`" + `      | embedded year equals the year of the date parsed from the filename |
| ` + "`" + `missing` + "`" + ` | no embedded year                                               |
| ` + "`" + `wrong` + "`" + `   | embedded year present, but no filename date or a different year |

## Repair

` + "`" + `repair_archives` + "`" + ` rewrites every archive that is not ` + "`" + `ok` + "`" + `. The new date is the
date parsed from the filename when it is valid, otherwise the file
modification date. Run it with ` + "`" + `dry_run: true` + "`" + ` first to see the plan.

Filename dates are recognised as ` + "`" + `YYYY-MM-DD` + "`" + `, ` + "`" + `YYYY.MM.DD` + "`" + `, ` + "`" + `YYYY-MM` + "`" + ` and a
bare four-digit ` + "`" + `YYYY` + "`" + `.
`
