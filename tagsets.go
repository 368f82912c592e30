// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

// IFD pointer tags.
const (
	TagEXIFIFDPointer             uint16 = 0x8769
	TagGPSIFDPointer              uint16 = 0x8825
	TagInteroperabilityIFDPointer uint16 = 0xa005
)

// Names of the canonical tag sets.
const (
	TagSetNameBaseline         = "Baseline TIFF"
	TagSetNameEXIF             = "EXIF"
	TagSetNameGPS              = "GPS"
	TagSetNameInteroperability = "Interoperability"
)

var ifdPointerNames = map[uint16]string{
	TagEXIFIFDPointer:             "EXIFIFD",
	TagGPSIFDPointer:              "GPSIFD",
	TagInteroperabilityIFDPointer: "InteroperabilityIFD",
}

// Source: TIFF 6.0, pages 117-118.
var fieldsBaseline = map[uint16]string{0xfe: "NewSubfileType", 0xff: "SubfileType", 0x100: "ImageWidth", 0x101: "ImageLength", 0x102: "BitsPerSample", 0x103: "Compression", 0x106: "PhotometricInterpretation", 0x107: "Threshholding", 0x108: "CellWidth", 0x109: "CellLength", 0x10a: "FillOrder", 0x10d: "DocumentName", 0x10e: "ImageDescription", 0x10f: "Make", 0x110: "Model", 0x111: "StripOffsets", 0x112: "Orientation", 0x115: "SamplesPerPixel", 0x116: "RowsPerStrip", 0x117: "StripByteCounts", 0x118: "MinSampleValue", 0x119: "MaxSampleValue", 0x11a: "XResolution", 0x11b: "YResolution", 0x11c: "PlanarConfiguration", 0x11d: "PageName", 0x11e: "XPosition", 0x11f: "YPosition", 0x120: "FreeOffsets", 0x121: "FreeByteCounts", 0x122: "GrayResponseUnit", 0x123: "GrayResponseCurve", 0x124: "T4Options", 0x125: "T6Options", 0x128: "ResolutionUnit", 0x129: "PageNumber", 0x12d: "TransferFunction", 0x131: "Software", 0x132: "DateTime", 0x13b: "Artist", 0x13c: "HostComputer", 0x13d: "Predictor", 0x13e: "WhitePoint", 0x13f: "PrimaryChromaticities", 0x140: "ColorMap", 0x141: "HalftoneHints", 0x142: "TileWidth", 0x143: "TileLength", 0x144: "TileOffsets", 0x145: "TileByteCounts", 0x14c: "InkSet", 0x14d: "InkNames", 0x14e: "NumberOfInks", 0x150: "DotRange", 0x151: "TargetPrinter", 0x152: "ExtraSamples", 0x153: "SampleFormat", 0x154: "SMinSampleValue", 0x155: "SMaxSampleValue", 0x156: "TransferRange", 0x200: "JPEGProc", 0x201: "JPEGInterchangeFormat", 0x202: "JPEGInterchangeFormatLength", 0x203: "JPEGRestartInterval", 0x205: "JPEGLosslessPredictors", 0x206: "JPEGPointTransforms", 0x207: "JPEGQTables", 0x208: "JPEGDCTables", 0x209: "JPEGACTables", 0x211: "YCbCrCoefficients", 0x212: "YCbCrSubSampling", 0x213: "YCbCrPositioning", 0x214: "ReferenceBlackWhite", 0x8298: "Copyright"}

// Baseline family tags not part of TIFF 6.0 proper: supplements, TIFF/EP,
// DNG, XMP/IPTC/ICC/Photoshop carriers and the Windows XP tags.
var fieldsBaselineExtended = map[uint16]string{0x14a: "SubIFDs", 0x15b: "JPEGTables", 0x2bc: "XMP", 0x800: "ImageID", 0x828d: "CFARepeatPatternDim", 0x828e: "CFAPattern", 0x830e: "ModelPixelScale", 0x83bb: "IPTC", 0x8482: "ModelTiepoint", 0x85d8: "ModelTransformation", 0x8649: "Photoshop", 0x8773: "ICCProfile", 0x87af: "GeoKeyDirectory", 0x87b0: "GeoDoubleParams", 0x87b1: "GeoAsciiParams", 0x9c9b: "XPTitle", 0x9c9c: "XPComment", 0x9c9d: "XPAuthor", 0x9c9e: "XPKeywords", 0x9c9f: "XPSubject", 0xc4a5: "PrintIM", 0xc612: "DNGVersion", 0xc613: "DNGBackwardVersion", 0xc614: "UniqueCameraModel", 0xc618: "LinearizationTable", 0xc61a: "BlackLevel", 0xc61d: "WhiteLevel", 0xc621: "ColorMatrix1", 0xc622: "ColorMatrix2", 0xc628: "AsShotNeutral", 0xc62a: "BaselineExposure"}

var fieldsEXIF = map[uint16]string{0x829a: "ExposureTime", 0x829d: "FNumber", 0x8822: "ExposureProgram", 0x8824: "SpectralSensitivity", 0x8827: "ISOSpeedRatings", 0x8828: "OECF", 0x8830: "SensitivityType", 0x8832: "RecommendedExposureIndex", 0x9000: "ExifVersion", 0x9003: "DateTimeOriginal", 0x9004: "DateTimeDigitized", 0x9010: "OffsetTime", 0x9011: "OffsetTimeOriginal", 0x9012: "OffsetTimeDigitized", 0x9101: "ComponentsConfiguration", 0x9102: "CompressedBitsPerPixel", 0x9201: "ShutterSpeedValue", 0x9202: "ApertureValue", 0x9203: "BrightnessValue", 0x9204: "ExposureBiasValue", 0x9205: "MaxApertureValue", 0x9206: "SubjectDistance", 0x9207: "MeteringMode", 0x9208: "LightSource", 0x9209: "Flash", 0x920a: "FocalLength", 0x9214: "SubjectArea", 0x927c: "MakerNote", 0x9286: "UserComment", 0x9290: "SubSecTime", 0x9291: "SubSecTimeOriginal", 0x9292: "SubSecTimeDigitized", 0xa000: "FlashpixVersion", 0xa001: "ColorSpace", 0xa002: "PixelXDimension", 0xa003: "PixelYDimension", 0xa004: "RelatedSoundFile", 0xa20b: "FlashEnergy", 0xa20c: "SpatialFrequencyResponse", 0xa20e: "FocalPlaneXResolution", 0xa20f: "FocalPlaneYResolution", 0xa210: "FocalPlaneResolutionUnit", 0xa214: "SubjectLocation", 0xa215: "ExposureIndex", 0xa217: "SensingMethod", 0xa300: "FileSource", 0xa301: "SceneType", 0xa302: "CFAPattern", 0xa401: "CustomRendered", 0xa402: "ExposureMode", 0xa403: "WhiteBalance", 0xa404: "DigitalZoomRatio", 0xa405: "FocalLengthIn35mmFilm", 0xa406: "SceneCaptureType", 0xa407: "GainControl", 0xa408: "Contrast", 0xa409: "Saturation", 0xa40a: "Sharpness", 0xa40b: "DeviceSettingDescription", 0xa40c: "SubjectDistanceRange", 0xa420: "ImageUniqueID", 0xa430: "CameraOwnerName", 0xa431: "BodySerialNumber", 0xa432: "LensSpecification", 0xa433: "LensMake", 0xa434: "LensModel", 0xa435: "LensSerialNumber", 0xa500: "Gamma"}

var fieldsGPS = map[uint16]string{0x0: "GPSVersionID", 0x1: "GPSLatitudeRef", 0x2: "GPSLatitude", 0x3: "GPSLongitudeRef", 0x4: "GPSLongitude", 0x5: "GPSAltitudeRef", 0x6: "GPSAltitude", 0x7: "GPSTimeStamp", 0x8: "GPSSatellites", 0x9: "GPSStatus", 0xa: "GPSMeasureMode", 0xb: "GPSDOP", 0xc: "GPSSpeedRef", 0xd: "GPSSpeed", 0xe: "GPSTrackRef", 0xf: "GPSTrack", 0x10: "GPSImgDirectionRef", 0x11: "GPSImgDirection", 0x12: "GPSMapDatum", 0x13: "GPSDestLatitudeRef", 0x14: "GPSDestLatitude", 0x15: "GPSDestLongitudeRef", 0x16: "GPSDestLongitude", 0x17: "GPSDestBearingRef", 0x18: "GPSDestBearing", 0x19: "GPSDestDistanceRef", 0x1a: "GPSDestDistance", 0x1b: "GPSProcessingMethod", 0x1c: "GPSAreaInformation", 0x1d: "GPSDateStamp", 0x1e: "GPSDifferential", 0x1f: "GPSHPositioningError"}

var fieldsInteroperability = map[uint16]string{0x1: "InteroperabilityIndex", 0x2: "InteroperabilityVersion", 0x1000: "RelatedImageFileFormat", 0x1001: "RelatedImageWidth", 0x1002: "RelatedImageLength"}

// Registry holds one instance of each canonical tag set.
// Each call to NewRegistry returns fresh, independent instances, so adding a
// custom tag to one registry's baseline set never leaks into another.
type Registry struct {
	baseline         *TagSet
	exif             *TagSet
	gps              *TagSet
	interoperability *TagSet
}

// NewRegistry creates the canonical Baseline, EXIF, GPS and
// Interoperability tag sets.
func NewRegistry() *Registry {
	return &Registry{
		baseline:         newTagSetFromFields(0, TagSetNameBaseline, fieldsBaseline, TagEXIFIFDPointer, TagGPSIFDPointer),
		exif:             newTagSetFromFields(TagEXIFIFDPointer, TagSetNameEXIF, fieldsEXIF, TagInteroperabilityIFDPointer),
		gps:              newTagSetFromFields(TagGPSIFDPointer, TagSetNameGPS, fieldsGPS),
		interoperability: newTagSetFromFields(TagInteroperabilityIFDPointer, TagSetNameInteroperability, fieldsInteroperability),
	}
}

// Baseline returns the root level tag set (IFD pointer tag ID 0).
func (r *Registry) Baseline() *TagSet {
	return r.baseline
}

// EXIF returns the EXIF sub-IFD tag set.
func (r *Registry) EXIF() *TagSet {
	return r.exif
}

// GPS returns the GPS sub-IFD tag set.
func (r *Registry) GPS() *TagSet {
	return r.gps
}

// Interoperability returns the Interoperability sub-IFD tag set.
func (r *Registry) Interoperability() *TagSet {
	return r.interoperability
}

// All returns all canonical tag sets, baseline first.
func (r *Registry) All() []*TagSet {
	return []*TagSet{r.baseline, r.exif, r.gps, r.interoperability}
}

// ForIFDPointerTag returns the canonical tag set for the IFD that t points
// to, or nil if t is not a known pointer tag.
func (r *Registry) ForIFDPointerTag(t Tag) *TagSet {
	for _, ts := range r.All()[1:] {
		if ts.ifdPointerTagID == t.ID {
			return ts
		}
	}
	return nil
}

// NewBaselineSuperset returns a new baseline tag set holding every known
// baseline family tag, for lenient parsing. It has the baseline identity, so
// it is Equal to Baseline().
func (r *Registry) NewBaselineSuperset() *TagSet {
	ts := r.baseline.Clone()
	for id, name := range fieldsBaselineExtended {
		ts.AddTag(Tag{ID: id, Name: name})
	}
	return ts
}

func newTagSetFromFields(pointerTagID uint16, name string, fields map[uint16]string, pointers ...uint16) *TagSet {
	ts := NewTagSet(pointerTagID, name)
	for id, name := range fields {
		ts.AddTag(Tag{ID: id, Name: name})
	}
	for _, id := range pointers {
		ts.AddTag(Tag{ID: id, Name: ifdPointerNames[id], IsIFDPointer: true})
	}
	return ts
}
