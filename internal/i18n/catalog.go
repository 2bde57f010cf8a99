package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Messages printed by the command line. English is the key itself.
const (
	MsgNoChanges     = "No changes.\n"
	MsgWritten       = "Wrote %d file(s).\n"
	MsgDryRun        = "Dry run, nothing written.\n"
	MsgDeleted       = "Deleted %s.\n"
	MsgRenamed       = "Renamed %s to %s.\n"
	MsgAdded         = "Added %s.\n"
	MsgUpdated       = "Updated %s.\n"
	MsgNoCandidates  = "No candidates for %s.\n"
	MsgValidationErr = "Configuration is not valid:\n"
	MsgWarning       = "warning: %s\n"
	MsgNoProblems    = "No problems found.\n"
	MsgNoProposal    = "Nothing to propose.\n"
)

var german = map[string]string{
	MsgNoChanges:     "Keine Änderungen.\n",
	MsgWritten:       "%d Datei(en) geschrieben.\n",
	MsgDryRun:        "Testlauf, nichts geschrieben.\n",
	MsgDeleted:       "%s gelöscht.\n",
	MsgRenamed:       "%s in %s umbenannt.\n",
	MsgAdded:         "%s hinzugefügt.\n",
	MsgUpdated:       "%s geändert.\n",
	MsgNoCandidates:  "Keine Kandidaten für %s.\n",
	MsgValidationErr: "Die Konfiguration ist ungültig:\n",
	MsgWarning:       "Warnung: %s\n",
	MsgNoProblems:    "Keine Probleme gefunden.\n",
	MsgNoProposal:    "Kein Vorschlag.\n",
}

func init() {
	for key, msg := range german {
		_ = message.SetString(language.German, key, msg)
	}
}
