package archive

import (
	"unicode/utf8"
)

const readmeRequirementsLimit = 200

// PlaceholderFiles returns the fixed starter project used when the pipeline
// reports success without returning any files.
func PlaceholderFiles(requirements string) map[string]string {
	return map[string]string{
		"README.md": `# Generated Project

This project was automatically generated based on your requirements:

## Requirements
` + Truncate(requirements, readmeRequirementsLimit) + `...

## File Structure
- ` + "`main.py`" + `: Entry point
- ` + "`requirements.txt`" + `: Dependencies
- ` + "`src/`" + `: Source code directory
`,
		"requirements.txt": `streamlit>=1.28.0
numpy>=1.21.0
pandas>=1.3.0
`,
		"main.py": `#!/usr/bin/env python3
"""
Main application entry point
"""

import streamlit as st

def main():
    st.title("Generated Application")
    st.write("This application was automatically generated!")

    # TODO: Implement your functionality here

if __name__ == "__main__":
    main()
`,
	}
}

// Truncate returns at most n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
