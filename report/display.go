package report

import (
	"fmt"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// displayTransformNote displays a single applied-transformation note.
func displayTransformNote(msg string) {
	fmt.Print("  ")
	InfoColorFG.Print("[Transform]")
	fmt.Println(" " + msg)
}

// displayHeader displays a phase or module banner.
func displayHeader(msg string) {
	fmt.Println()
	InfoColorFG.Println(msg)
}

// displayWarning displays a warning message.
func displayWarning(msg string) {
	WarnStyleBG.Print("Warning")
	WarnColorFG.Println(" " + msg)
}

// displayError displays a non-fatal error message.
func displayError(msg string) {
	ErrorStyleBG.Print("Error")
	ErrorColorFG.Println(" " + msg)
}

const fatalErrorPostlude = `
This is likely a bug in the hardening tool.
Please open an issue on Github: github.com/Prajwal-kp-18/llvm-fihardening`

func displayFatalError(msg string) {
	fmt.Print("\n\n")
	ErrorStyleBG.Print("Fatal Error ")
	ErrorColorFG.Println(msg)
	InfoColorFG.Println(fatalErrorPostlude)
}

// displayFinished displays the concluding message for a hardening run.
func displayFinished(errorCount, warningCount int, outputPath string) {
	fmt.Print("\n")

	if errorCount == 0 {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")

	switch errorCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" errors, ")
	case 1:
		ErrorColorFG.Print(1)
		fmt.Print(" error, ")
	default:
		ErrorColorFG.Print(errorCount)
		fmt.Print(" errors, ")
	}

	switch warningCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" warnings)")
	case 1:
		WarnColorFG.Print(1)
		fmt.Print(" warning)")
	default:
		WarnColorFG.Print(warningCount)
		fmt.Print(" warnings)")
	}

	if errorCount == 0 && outputPath != "" {
		fmt.Print("  ->  ")
		InfoColorFG.Print(outputPath)
	}

	fmt.Println()
}
