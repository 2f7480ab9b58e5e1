package safety

// redFlagSymptoms is the curated emergency-symptom vocabulary. Multi-word
// entries match as phrases, single words as whole tokens.
var redFlagSymptoms = []string{
	"chest pain",
	"chest tightness",
	"difficulty breathing",
	"shortness of breath",
	"severe bleeding",
	"coughing blood",
	"vomiting blood",
	"unconsciousness",
	"unconscious",
	"fainting",
	"seizure",
	"convulsions",
	"sudden weakness",
	"slurred speech",
	"facial drooping",
	"severe headache",
	"worst headache",
	"stiff neck",
	"severe abdominal pain",
	"blue lips",
	"very high fever",
	"severe dehydration",
	"severe allergic reaction",
	"swollen tongue",
	"paralysis",
}

// generalSymptoms extends the vocabulary with non-emergency symptoms so the
// graph queries can work with everything the user mentioned.
var generalSymptoms = []string{
	"fever",
	"headache",
	"cough",
	"sore throat",
	"body ache",
	"joint pain",
	"fatigue",
	"dizziness",
	"nausea",
	"vomiting",
	"diarrhea",
	"rash",
	"chills",
	"sweating",
	"palpitations",
	"frequent urination",
	"excessive thirst",
	"blurred vision",
	"back pain",
	"stomach pain",
	"loss of appetite",
	"weight loss",
}

// crisisPhrases is the mental-health crisis vocabulary.
var crisisPhrases = []string{
	"want to die",
	"kill myself",
	"end my life",
	"suicide",
	"suicidal",
	"self harm",
	"hurt myself",
	"no reason to live",
	"better off dead",
	"end it all",
	"can't go on",
	"harming myself",
}

// crisisFirstAid is the guidance attached to any crisis detection. India
// helpline numbers first.
var crisisFirstAid = []string{
	"You are not alone. Please reach out to someone you trust right now.",
	"Call the Tele-MANAS helpline at 14416 (available 24x7, free).",
	"Call the Vandrevala Foundation helpline at 1860-2662-345.",
	"If you are in immediate danger, call emergency services at 112.",
}

// pregnancyEmergencyPhrases is the pregnancy-emergency vocabulary.
var pregnancyEmergencyPhrases = []string{
	"vaginal bleeding",
	"bleeding while pregnant",
	"bleeding during pregnancy",
	"severe cramping",
	"baby not moving",
	"reduced fetal movement",
	"water broke",
	"waters broke",
	"severe swelling",
	"contractions before 37 weeks",
	"preterm contractions",
}
