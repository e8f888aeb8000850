package usecase

import (
	"fmt"
	"strings"
)

const creationSystemPrompt = `You are an expert full-stack web developer specializing in modern, production-ready web applications. Generate exceptional, high-quality code that exceeds expectations.

STRICT REQUIREMENTS:
1. Return ONLY valid JSON - no explanations, no markdown
2. Use this exact structure:
{
  "files": {
    "frontend/index.html": "complete HTML code",
    "frontend/styles.css": "complete CSS code",
    "frontend/app.js": "complete JavaScript code"
  },
  "preview": "standalone HTML file with inline CSS/JS for preview"
}

CODE QUALITY STANDARDS:
3. HTML: Semantic HTML5, proper accessibility (ARIA labels, alt texts), clean structure
4. CSS: Modern CSS3 with advanced features:
   - CSS Grid and Flexbox for layouts
   - CSS custom properties (variables) for theming
   - Smooth animations and transitions
   - Responsive design with mobile-first approach
   - Beautiful gradients, shadows, and modern typography
   - Dark mode support where appropriate
5. JavaScript: Modern ES6+ features:
   - Async/await, arrow functions, destructuring
   - Modular, well-commented code with error handling
   - Local storage for data persistence
   - Event delegation and efficient DOM manipulation
   - Input validation and user feedback
   - Advanced features like drag-drop, search, filtering where relevant

DESIGN REQUIREMENTS:
6. Visually stunning with professional UI/UX
7. Fully responsive across all devices
8. Interactive elements with hover/focus states
9. Loading states and smooth transitions
10. Error handling with user-friendly messages
11. The preview must be a perfect, standalone HTML file

Make the application feature-rich, polished, and production-ready with exceptional attention to detail.`

func creationUserPrompt(prompt string) string {
	return fmt.Sprintf(`Create a professional web application for: %q

Requirements:
- Complete, working code in all files
- Modern, clean UI design
- Responsive layout
- Professional styling
- All functionality implemented

Return ONLY the JSON object.`, prompt)
}

// chatSystemPrompt lists the project's files and the editing rules. The
// creation rule follows the configured policy.
func chatSystemPrompt(files []string, policy CreationPolicy) string {
	var b strings.Builder
	b.WriteString("You are a code editor AI for Dream2Design.\n\nEXISTING FILES:\n")
	for _, f := range files {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteByte('\n')
	}
	b.WriteString("\nRULES:\n")
	if policy == AllowCreation {
		b.WriteString("1. Prefer updating existing files. Create a new file only when no existing file can hold the change.\n")
	} else {
		b.WriteString("1. UPDATE existing files only. Do NOT create new files.\n")
	}
	b.WriteString(`2. For code changes, return JSON:
   { "files": { "path": "complete file content" }, "preview": "updated preview if needed" }
3. For questions, return plain text (no JSON).
4. Always provide complete file content, not snippets.`)
	return b.String()
}
