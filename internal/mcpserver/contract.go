package mcpserver

// GuideFormatContract describes the canonical recommendation Markdown
// format that LLM producers should follow so the structured parser can
// break responses into sections, places, and labeled details.
const GuideFormatContract = `# Guidepost Recommendation Format Contract

Streamed research responses and guide sections SHOULD follow this
Markdown structure so they can be parsed into structured recommendations.

## Structure

` + "```" + `markdown
## Section Title

Optional intro paragraph before the first place.

### Place Name
**Description:** One or two sentences about the place.
**Location:** Neighborhood or address.
**Price:** Typical cost or price range.
**Hours:** Opening hours.
**Rating:** 4.7/5 (1,234 reviews)
**Tips:**
- Short practical tip
- Another tip
` + "```" + `

## Rules

1. **Sections** start with ` + "`" + `## ` + "`" + `. A response without any section
   headings is treated as one default "Recommendations" section.
2. **Places** start with ` + "`" + `### ` + "`" + ` inside a section. Text before the
   first place becomes the section intro.
3. **Details** are bold labels followed by a colon: ` + "`" + `**Label:** value` + "`" + `.
   Recognized labels: Description, Location, Price, Hours, Booking,
   Rating, Tips, Reviews Summary, Reviews Highlights. Unknown labels are
   preserved as extra details.
4. **Ratings** use the ` + "`" + `N/5 (M reviews)` + "`" + ` form where possible; free
   text is accepted but will not produce a numeric rating.
5. **Tips and review highlights** are bulleted lists (` + "`" + `- ` + "`" + ` or ` + "`" + `* ` + "`" + `).
   A blank line ends the list.
6. **No code fences** around the response. Fenced lines are stripped
   before parsing.
7. **Plain prose is acceptable** when a query has no place
   recommendations; it is kept as paragraphs instead of structured items.

## Example

` + "```" + `markdown
## Ramen Shops

Tokyo's ramen scene rewards short walks off the main streets.

### Afuri
**Description:** Light yuzu shio ramen in a modern counter shop.
**Location:** Ebisu, 2 min from the station.
**Price:** 1,200-1,500 yen
**Rating:** 4.5/5 (2,480 reviews)
**Tips:**
- Buy a ticket from the machine first
- Go before noon to skip the queue
` + "```" + `
`
