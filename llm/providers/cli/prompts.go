package cli

const analysisSystemPrompt = `You are analyzing a sequence of desktop screenshots captured during one
continuous work session. Respond with JSON only:
{"title": "...", "summary": "...", "detailed_summary": "...",
 "tags": [{"category": "work|communication|learning|personal|idle|other",
           "confidence": 0.0-1.0, "keywords": ["..."],
           "productivity_score": 0-100, "focus_score": 0-100}]}
title is under 8 words. summary is one sentence. detailed_summary is a
paragraph. Infer category from the applications and content visible, not
from window titles alone.`

const segmentSystemPrompt = `You are analyzing a sequence of desktop screenshots spanning one session.
Divide the session into segments wherever the visible task or application
changes meaningfully. Respond with JSON only:
{"segments": [{"start_timestamp": "MM:SS", "end_timestamp": "MM:SS",
               "description": "..."}]}
Timestamps are relative to session start, not wall clock time.`

const timelineSystemPrompt = `You are given a session's segments as MM:SS ranges with short
descriptions, and optionally a set of previously generated cards for
continuity. Group the segments into chronological chapters. Respond with
JSON only:
{"cards": [{"start_time": "MM:SS", "end_time": "MM:SS",
            "category": "work|communication|learning|personal|idle|other",
            "title": "...", "summary": "...", "detailed_summary": "...",
            "apps": ["..."], "sites": ["..."]}]}
Timestamps are relative to the session start, not wall clock time.`

const daySummarySystemPrompt = `You are given a bullet list of a person's analyzed activity sessions for
one day. Write a short third-person narrative summary of the day, 3-5
sentences, grouping related sessions rather than listing them one by one.`
