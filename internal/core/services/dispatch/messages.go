package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/classifier"
)

const stampLayout = "2006-01-02 15:04:05"

type message struct {
	nType   domain.NotificationType
	subject string
	body    string
}

func summaryBlock(scan domain.ScanRecord, res classifier.Result) string {
	return fmt.Sprintf("Scan Summary:\n• Total Open Ports: %d\n• High Risk Ports: %d\n• Medium Risk Ports: %d\n\n",
		scan.OpenPortCount, res.Counts[domain.TierHigh], res.Counts[domain.TierMedium])
}

// riskMessage selects the verdict notification. Verdicts other than High and
// Medium get the all-clear message.
func riskMessage(scan domain.ScanRecord, res classifier.Result) message {
	var b strings.Builder
	switch scan.Verdict {
	case domain.VerdictHigh:
		fmt.Fprintf(&b, "Your scan of device %s has completed with a HIGH RISK assessment.\n\n", scan.Target)
		b.WriteString(summaryBlock(scan, res))
		b.WriteString("IMMEDIATE ACTION REQUIRED\n")
		b.WriteString("This device has critical vulnerabilities that should be addressed immediately. ")
		b.WriteString("Please review the full scan report and implement recommended security measures.\n\n")
		fmt.Fprintf(&b, "Scanned at: %s", stamp(scan.Timestamp))
		return message{domain.NotificationHighRisk, "High Risk Device Detected!", b.String()}

	case domain.VerdictMedium:
		fmt.Fprintf(&b, "Your scan of device %s has completed with a MEDIUM RISK assessment.\n\n", scan.Target)
		b.WriteString(summaryBlock(scan, res))
		b.WriteString("Review Recommended\n")
		b.WriteString("This device has some vulnerabilities that should be reviewed. ")
		b.WriteString("Please check the scan report and consider implementing the recommended security improvements.\n\n")
		fmt.Fprintf(&b, "Scanned at: %s", stamp(scan.Timestamp))
		return message{domain.NotificationMediumRisk, "Medium Risk Device Detected", b.String()}

	default:
		fmt.Fprintf(&b, "Your scan of device %s has completed with a LOW RISK assessment.\n\n", scan.Target)
		b.WriteString(summaryBlock(scan, res))
		b.WriteString("Good News!\n")
		b.WriteString("This device appears to be properly secured. Continue following security best practices ")
		b.WriteString("and perform regular scans to maintain security.\n\n")
		fmt.Fprintf(&b, "Scanned at: %s", stamp(scan.Timestamp))
		return message{domain.NotificationLowRisk, "Scan Complete - Device Secure", b.String()}
	}
}

func scanCompleteMessage(scan domain.ScanRecord) message {
	body := fmt.Sprintf("Your IoT security scan has completed successfully.\n\n"+
		"Target: %s\nPorts Detected: %d\nAI Assessment: %s\n\n"+
		"View your dashboard to see the detailed results.",
		scan.Target, scan.OpenPortCount, scan.Verdict)
	return message{domain.NotificationScanComplete, "Scan Complete: " + scan.Target, body}
}

func techContactMessage(scan domain.ScanRecord, res classifier.Result) message {
	body := fmt.Sprintf("Security alert: Please schedule a meeting with the technical team "+
		"to address critical vulnerabilities.\n\n"+
		"Device: %s\nRisk Level: %s\nHigh-Risk Ports Detected: %d\n\n"+
		"The technical team has been notified and will be available to assist with remediation steps.",
		scan.Target, domain.VerdictHigh, res.Counts[domain.TierHigh])
	return message{domain.NotificationTechContact, "Technical Team Notification", body}
}

// stamp is the time format used in message bodies.
func stamp(t time.Time) string { return t.Format(stampLayout) }
